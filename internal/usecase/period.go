package usecase

import (
	"time"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
)

// Clock returns the current time. Services take one so tests can pin "now".
type Clock func() time.Time

// IsPeriodValid reports whether the record's paid period still covers now.
// The end instant itself is still covered. A record without an end is not.
func IsPeriodValid(record *entity.SubscriptionRecord, now time.Time) bool {
	if record == nil {
		return false
	}
	return periodCovers(record.CurrentPeriodEnd, now)
}

func periodCovers(end *time.Time, now time.Time) bool {
	return end != nil && !now.After(*end)
}
