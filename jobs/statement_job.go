package jobs

import (
	"time"

	"github.com/mutisya87/trainer_marketplace/services"
)

// GenerateMonthlyStatements runs on the first of the month and produces
// earnings statements for the month that just ended.
func GenerateMonthlyStatements() {
	lastMonth := time.Now().UTC().AddDate(0, -1, 0)
	services.GenerateMonthlyStatements(lastMonth)
}
