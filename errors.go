// Copyright © 2018-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmn600

import "errors"

var (
	// ErrConfig marks an inconsistent static configuration or a
	// configuration/hardware mismatch. Fatal to bring-up.
	ErrConfig = errors.New("configuration error")

	// ErrCapacity marks a discovered node count exceeding a fixed
	// pool bound. Fatal, no retry can fix it.
	ErrCapacity = errors.New("pool capacity exceeded")

	// ErrTimeout marks a polled hardware condition that never came
	// true within budget.
	ErrTimeout = errors.New("hardware timeout")

	// ErrLinkState marks a cross-chip transition invoked out of
	// order. Rejected without side effects.
	ErrLinkState = errors.New("link transition out of order")

	// ErrNotInitialized marks use of the device before Setup
	// completed.
	ErrNotInitialized = errors.New("device not initialized")
)
