// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"context"
	"errors"

	"github.com/blinklabs-io/quoll/database/models"
	"gorm.io/gorm"
)

// LookupTarget returns the target with the given ID, or nil when no such
// target exists. This is a single indexed read and runs on every vote.
func (d *Database) LookupTarget(
	ctx context.Context,
	targetID string,
) (*models.Target, error) {
	var target models.Target
	result := d.db.WithContext(ctx).
		Where("id = ?", targetID).
		First(&target)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, PersistenceError{
			Op:  "target lookup",
			Err: result.Error,
		}
	}
	return &target, nil
}

// CreateTarget inserts a target row. Target management belongs to the
// administrative surface; this exists for seeding and tests.
func (d *Database) CreateTarget(
	ctx context.Context,
	target *models.Target,
) error {
	result := d.db.WithContext(ctx).Create(target)
	if result.Error != nil {
		return PersistenceError{
			Op:  "create target",
			Err: result.Error,
		}
	}
	return nil
}
