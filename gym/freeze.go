/*
freeze.go - Membership freeze/unfreeze state machine

STATES:
                 Freeze                     Unfreeze (endDate >= now)
    active ─────────────────▶ frozen ─────────────────────────▶ active
    expired ────────────────▶ frozen ─────────────────────────▶ expired
                                       Unfreeze (endDate < now)

  Freeze from frozen fails with ErrAlreadyFrozen.
  Unfreeze from anything but frozen fails with ErrNotFrozen.

LAZY EXPIRY:
  Nothing moves a membership from active to expired as time passes. Unfreeze
  is the only place status is recomputed from the membership end date.

HISTORY:
  Every Freeze appends a FreezePeriod. Unfreeze leaves the history alone;
  the period stays on record after the membership resumes.
*/
package gym

import (
	"context"
	"fmt"
	"time"
)

type FreezeResult struct {
	Period   FreezePeriod
	Customer Customer
	Message  string
}

type UnfreezeResult struct {
	Status   Status
	Customer Customer
	Message  string
}

// FreezeStatus is the read-only view returned by CheckFreezeStatus.
type FreezeStatus struct {
	Frozen    bool           `json:"frozen"`
	Active    []FreezePeriod `json:"activeFreezes"`
	TotalDays int            `json:"totalFreezeDays"`
}

// Freeze suspends the membership from start to end. The dates are recorded
// as given; their order is not checked.
func (e *Engine) Freeze(ctx context.Context, customerID CustomerID, start, end Date, reason string) (*FreezeResult, error) {
	r := e.repo
	var res FreezeResult

	err := r.mutate(ctx, func(st *state) (change, error) {
		c := st.customer(customerID)
		if c == nil {
			return change{}, ErrCustomerNotFound
		}
		if c.Status == StatusFrozen {
			return change{}, ErrAlreadyFrozen
		}

		p := FreezePeriod{
			ID:        FreezeID(r.newID()),
			StartDate: start,
			EndDate:   end,
			Reason:    reason,
			CreatedAt: r.now().UTC(),
		}
		c.FreezePeriods = append(c.FreezePeriods, p)
		c.Status = StatusFrozen

		res = FreezeResult{
			Period:   p,
			Customer: c.Clone(),
			Message:  fmt.Sprintf("Membership frozen from %s to %s", start, end),
		}
		return change{customers: true}, nil
	})
	if err != nil {
		e.log.Debug().Err(err).Str("customer_id", string(customerID)).Msg("freeze rejected")
		return nil, err
	}

	e.log.Info().
		Str("customer_id", string(customerID)).
		Stringer("start", start).
		Stringer("end", end).
		Msg("membership frozen")
	return &res, nil
}

// Unfreeze resumes a frozen membership. The new status is expired when the
// membership end date has passed, active otherwise.
func (e *Engine) Unfreeze(ctx context.Context, customerID CustomerID) (*UnfreezeResult, error) {
	r := e.repo
	var res UnfreezeResult

	err := r.mutate(ctx, func(st *state) (change, error) {
		c := st.customer(customerID)
		if c == nil {
			return change{}, ErrCustomerNotFound
		}
		if c.Status != StatusFrozen {
			return change{}, ErrNotFrozen
		}

		c.Status = StatusActive
		if c.EndDate.BeforeTime(r.now()) {
			c.Status = StatusExpired
		}

		res = UnfreezeResult{
			Status:   c.Status,
			Customer: c.Clone(),
			Message:  "Membership unfrozen successfully",
		}
		return change{customers: true}, nil
	})
	if err != nil {
		e.log.Debug().Err(err).Str("customer_id", string(customerID)).Msg("unfreeze rejected")
		return nil, err
	}

	e.log.Info().
		Str("customer_id", string(customerID)).
		Str("status", string(res.Status)).
		Msg("membership unfrozen")
	return &res, nil
}

// CheckFreezeStatus reports the freeze periods covering now and their
// combined length in days.
func (e *Engine) CheckFreezeStatus(ctx context.Context, customerID CustomerID) (*FreezeStatus, error) {
	c, err := e.repo.Customer(customerID)
	if err != nil {
		return nil, err
	}
	return freezeStatusAt(&c, e.repo.now()), nil
}

func freezeStatusAt(c *Customer, now time.Time) *FreezeStatus {
	status := &FreezeStatus{
		Frozen: c.Status == StatusFrozen,
		Active: []FreezePeriod{},
	}
	for _, p := range c.FreezePeriods {
		if p.Contains(now) {
			status.Active = append(status.Active, p)
			status.TotalDays += p.Days()
		}
	}
	return status
}
