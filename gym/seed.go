package gym

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultSeed is the demo data installed into an empty store: three classes
// and two customers with opening balances. Each opening balance is backed by
// a top_up ledger entry so replaying the ledger reproduces it.
func DefaultSeed(now time.Time) Snapshot {
	classes := []Class{
		{
			ID:               "1",
			Name:             "Brazilian Jiu-Jitsu",
			Instructor:       "Master Carlos",
			Schedule:         "Mon, Wed, Fri - 6:00 PM",
			Description:      "Ground fighting and grappling techniques",
			Capacity:         20,
			EnrolledCount:    15,
			SessionsPerVisit: 1,
			MonthlyFee:       decimal.NewFromInt(120),
			DropInFee:        decimal.NewFromInt(25),
		},
		{
			ID:               "2",
			Name:             "Muay Thai",
			Instructor:       "Kru Somchai",
			Schedule:         "Tue, Thu - 7:00 PM",
			Description:      "The art of eight limbs - striking martial art",
			Capacity:         15,
			EnrolledCount:    12,
			SessionsPerVisit: 1,
			MonthlyFee:       decimal.NewFromInt(100),
			DropInFee:        decimal.NewFromInt(20),
		},
		{
			ID:               "3",
			Name:             "Kids Karate",
			Instructor:       "Sensei Mike",
			Schedule:         "Sat - 10:00 AM",
			Description:      "Traditional karate for children ages 6-12",
			Capacity:         25,
			EnrolledCount:    18,
			SessionsPerVisit: 1,
			MonthlyFee:       decimal.NewFromInt(80),
			DropInFee:        decimal.NewFromInt(15),
		},
	}

	customers := []Customer{
		{
			ID:              "1",
			Name:            "John Smith",
			Phone:           "555-0101",
			Email:           "john@example.com",
			MembershipType:  "Monthly Premium",
			SubscriptionFee: decimal.NewFromInt(150),
			StartDate:       MustParseDate("2024-01-15"),
			EndDate:         MustParseDate("2025-01-15"),
			Status:          StatusActive,
			EnrolledClasses: []ClassID{"1", "2"},
			ClassSessions:   map[ClassID]int{"1": 12, "2": 8},
		},
		{
			ID:              "2",
			Name:            "Sarah Johnson",
			Phone:           "555-0102",
			Email:           "sarah@example.com",
			MembershipType:  "3-Month Basic",
			SubscriptionFee: decimal.NewFromInt(300),
			StartDate:       MustParseDate("2024-11-01"),
			EndDate:         MustParseDate("2025-02-01"),
			Status:          StatusActive,
			EnrolledClasses: []ClassID{"1"},
			ClassSessions:   map[ClassID]int{"1": 24},
		},
	}

	var txs []SessionTransaction
	for i := range customers {
		c := &customers[i]
		c.CreatedAt = c.StartDate.Time
		c.normalize()

		// Map iteration order is random; keep ledger order stable.
		ids := make([]string, 0, len(c.ClassSessions))
		for id := range c.ClassSessions {
			ids = append(ids, string(id))
		}
		sort.Strings(ids)

		for _, id := range ids {
			n := c.ClassSessions[ClassID(id)]
			txs = append(txs, SessionTransaction{
				ID:           TransactionID(fmt.Sprintf("seed-%s-%s", c.ID, id)),
				CustomerID:   c.ID,
				ClassID:      ClassID(id),
				Source:       SourceClass,
				Type:         TxTopUp,
				Delta:        n,
				BalanceAfter: n,
				Reason:       "opening balance",
				CreatedAt:    now.UTC(),
			})
		}
	}

	return Snapshot{
		Customers:         customers,
		Classes:           classes,
		AttendanceRecords: []AttendanceRecord{},
		Transactions:      txs,
	}
}
