// Package anomaly holds the attendance anomaly rule engine. Detection is a
// pure function over one normalized record plus the three special-day
// predicates; the caller owns persistence and the holiday lookup.
package anomaly

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hrops/be-hr-attendance/internal/parser"
)

// Type identifies an anomaly classification. The codes are the operational
// vocabulary of the upstream badge system and are stored as-is.
type Type string

const (
	TypeLateArrival          Type = "ENTREE_TARDIVE"
	TypeEarlyLeave           Type = "SORTIE_ANTICIPEE"
	TypeUnjustifiedAbsence   Type = "ABSENCE_NON_JUSTIFIEE"
	TypeOddBadge             Type = "BADGEAGE_IMPAIR"
	TypeInsufficientPresence Type = "PRESENCE_INSUFFISANTE"
)

// insufficientPresenceFloor is the minimum shortfall between expected and
// actual presence before an anomaly is raised; sub-minute differences are
// rounding noise from the badge terminals.
const insufficientPresenceFloor = time.Minute

// Input is one attendance record as seen by the rule engine, decoupled from
// storage. Durations are nil when the report carried no value.
type Input struct {
	LateArrival      *time.Duration
	EarlyLeave       *time.Duration
	PresenceActual   *time.Duration
	PresenceExpected *time.Duration
	AbsenceUnjust    decimal.Decimal
	OddBadge         bool

	IsHoliday  bool
	IsLeave    bool
	IsTelework bool
}

// Finding is one detected anomaly.
type Finding struct {
	Type   Type
	Detail string
}

// Detect evaluates the business rules against one record and returns every
// anomaly found, in rule order.
//
// On a holiday, leave or telework day the presence expectations do not
// apply: the only possible anomaly is an odd badge count, which signals a
// hardware or process fault regardless of the calendar.
func Detect(in Input) []Finding {
	var findings []Finding

	if in.IsLeave || in.IsHoliday || in.IsTelework {
		if in.OddBadge {
			findings = append(findings, Finding{
				Type:   TypeOddBadge,
				Detail: "Badgeage impair détecté.",
			})
		}
		return findings
	}

	if in.LateArrival != nil && *in.LateArrival > 0 {
		findings = append(findings, Finding{
			Type:   TypeLateArrival,
			Detail: fmt.Sprintf("Entrée tardive de %s.", parser.FormatDuration(*in.LateArrival)),
		})
	}

	if in.EarlyLeave != nil && *in.EarlyLeave > 0 {
		findings = append(findings, Finding{
			Type:   TypeEarlyLeave,
			Detail: fmt.Sprintf("Sortie anticipée de %s.", parser.FormatDuration(*in.EarlyLeave)),
		})
	}

	if in.AbsenceUnjust.IsPositive() {
		findings = append(findings, Finding{
			Type:   TypeUnjustifiedAbsence,
			Detail: fmt.Sprintf("Absence non justifiée de %sh.", in.AbsenceUnjust.String()),
		})
	}

	if in.OddBadge {
		findings = append(findings, Finding{
			Type:   TypeOddBadge,
			Detail: "Badgeage impair détecté.",
		})
	}

	// Insufficient presence only applies when both durations are known, the
	// day has an expectation, and no unjustified absence already covers the
	// gap (an absence must not be double-flagged as short presence).
	if in.PresenceActual != nil && in.PresenceExpected != nil &&
		*in.PresenceExpected > 0 &&
		*in.PresenceActual < *in.PresenceExpected &&
		in.AbsenceUnjust.IsZero() {

		diff := *in.PresenceExpected - *in.PresenceActual
		if diff > insufficientPresenceFloor {
			findings = append(findings, Finding{
				Type:   TypeInsufficientPresence,
				Detail: fmt.Sprintf("Temps de présence inférieur au théorique (manque %s).", parser.FormatDuration(diff)),
			})
		}
	}

	return findings
}
