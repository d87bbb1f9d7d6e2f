// Copyright © 2018-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmn600

import (
	"fmt"
	"time"

	"github.com/jpillora/backoff"

	"github.com/platinasystems/cmn600/regio"
)

// pollBit waits for mask to come true in the register at off,
// sleeping through the delay collaborator with backoff between
// reads. Fails with ErrTimeout once budget is spent.
func (c *Ctx) pollBit(io regio.IO, off, mask uint64, budget time.Duration) error {
	b := &backoff.Backoff{
		Min:    10 * time.Microsecond,
		Max:    time.Millisecond,
		Factor: 2,
		Jitter: false,
	}
	var waited time.Duration
	for {
		v, err := io.R64(off)
		if err != nil {
			return err
		}
		if v&mask != 0 {
			return nil
		}
		if waited >= budget {
			return fmt.Errorf("bit 0x%x at 0x%x still clear after %v: %w",
				mask, off, budget, ErrTimeout)
		}
		d := b.Duration()
		c.delay.Sleep(d)
		waited += d
	}
}
