/*
Package stats computes dashboard figures from a repository snapshot.

PURPOSE:
  Read-only reducer over customers, classes and the attendance log. Nothing
  here writes; callers pass a gym.Snapshot and a reference time.

INCOME:
  Income is estimated from attendance: every check-in counts as one
  SessionPrice. Subscription fees are not summed; they are display figures.

MONTHS:
  Month boundaries use the UTC calendar. RevenueByMonth covers the current
  month and the five before it, oldest first.
*/
package stats

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/gym-ledger/gym"
)

// SessionPrice is the nominal income attributed to one attendance.
var SessionPrice = decimal.NewFromInt(50)

// RevenueMonths is how many months RevenueByMonth reports.
const RevenueMonths = 6

type Dashboard struct {
	TotalCustomers         int              `json:"total_customers"`
	ActiveCount            int              `json:"active_count"`
	FrozenCount            int              `json:"frozen_count"`
	ExpiredCount           int              `json:"expired_count"`
	TotalSessions          int              `json:"total_sessions"`
	TotalIncome            decimal.Decimal  `json:"total_income"`
	MonthlyAttendance      int              `json:"monthly_attendance"`
	MonthlyIncome          decimal.Decimal  `json:"monthly_income"`
	ClassPopularity        []ClassStats     `json:"class_popularity"`
	RevenueByMonth         []MonthlyRevenue `json:"revenue_by_month"`
	AvgSessionsPerCustomer decimal.Decimal  `json:"avg_sessions_per_customer"`
	LowSessionCustomers    int              `json:"low_session_customers"`
	TotalClasses           int              `json:"total_classes"`
}

type ClassStats struct {
	ID              gym.ClassID     `json:"id"`
	Name            string          `json:"name"`
	Attendance      int             `json:"attendance"`
	EnrolledCount   int             `json:"enrolled_count"`
	Capacity        int             `json:"capacity"`
	UtilizationRate decimal.Decimal `json:"utilization_rate"`
}

type MonthlyRevenue struct {
	Month   string          `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
}

// Compute builds the dashboard as of now.
func Compute(snap gym.Snapshot, now time.Time) Dashboard {
	now = now.UTC()
	d := Dashboard{
		TotalCustomers: len(snap.Customers),
		TotalClasses:   len(snap.Classes),
		TotalSessions:  len(snap.AttendanceRecords),
	}

	for i := range snap.Customers {
		c := &snap.Customers[i]
		switch c.Status {
		case gym.StatusActive:
			d.ActiveCount++
		case gym.StatusFrozen:
			d.FrozenCount++
		case gym.StatusExpired:
			d.ExpiredCount++
		}
		if gym.IsLowOnSessions(c) {
			d.LowSessionCustomers++
		}
	}

	d.TotalIncome = income(d.TotalSessions)
	d.MonthlyAttendance = countInMonth(snap.AttendanceRecords, now.Year(), now.Month())
	d.MonthlyIncome = income(d.MonthlyAttendance)
	d.ClassPopularity = classPopularity(snap)
	d.RevenueByMonth = revenueByMonth(snap.AttendanceRecords, now)

	d.AvgSessionsPerCustomer = decimal.Zero
	if d.TotalCustomers > 0 {
		d.AvgSessionsPerCustomer = decimal.NewFromInt(int64(d.TotalSessions)).
			Div(decimal.NewFromInt(int64(d.TotalCustomers))).
			Round(1)
	}

	return d
}

func income(sessions int) decimal.Decimal {
	return SessionPrice.Mul(decimal.NewFromInt(int64(sessions)))
}

func countInMonth(records []gym.AttendanceRecord, year int, month time.Month) int {
	n := 0
	for _, r := range records {
		ts := r.Timestamp.UTC()
		if ts.Year() == year && ts.Month() == month {
			n++
		}
	}
	return n
}

// classPopularity ranks classes by attendance, most attended first. Ties
// keep timetable order.
func classPopularity(snap gym.Snapshot) []ClassStats {
	counts := make(map[gym.ClassID]int, len(snap.Classes))
	for _, r := range snap.AttendanceRecords {
		if r.ClassID != "" {
			counts[r.ClassID]++
		}
	}

	out := make([]ClassStats, 0, len(snap.Classes))
	for _, cls := range snap.Classes {
		out = append(out, ClassStats{
			ID:              cls.ID,
			Name:            cls.Name,
			Attendance:      counts[cls.ID],
			EnrolledCount:   cls.EnrolledCount,
			Capacity:        cls.Capacity,
			UtilizationRate: Utilization(cls.EnrolledCount, cls.Capacity),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Attendance > out[j].Attendance
	})
	return out
}

// Utilization is enrolled/capacity as a percentage to one decimal place.
// Zero capacity gives zero.
func Utilization(enrolled, capacity int) decimal.Decimal {
	if capacity <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(enrolled)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(capacity))).
		Round(1)
}

func revenueByMonth(records []gym.AttendanceRecord, now time.Time) []MonthlyRevenue {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]MonthlyRevenue, 0, RevenueMonths)
	for i := RevenueMonths - 1; i >= 0; i-- {
		m := first.AddDate(0, -i, 0)
		out = append(out, MonthlyRevenue{
			Month:   m.Format("Jan 2006"),
			Revenue: income(countInMonth(records, m.Year(), m.Month())),
		})
	}
	return out
}
