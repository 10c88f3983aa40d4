package quota

import (
	"context"
	"fmt"

	"alfie/internal/domain"
	"alfie/internal/infra"
	"alfie/internal/sqlinline"
)

// Rate table in quota units per produced asset. Carousel slides and videos
// cost more than a single image to reflect their compute cost.
var rates = map[domain.AssetKind]int{
	domain.AssetKindImage:         1,
	domain.AssetKindCarouselSlide: 2,
	domain.AssetKindVideo:         10,
	domain.AssetKindText:          1,
}

// Cost maps a unit of produced content to quota units. Unknown kinds cost
// the image rate so a new asset category is never free by accident.
func Cost(kind domain.AssetKind, quantity int) int {
	if quantity <= 0 {
		return 0
	}
	rate, ok := rates[kind]
	if !ok {
		rate = rates[domain.AssetKindImage]
	}
	return rate * quantity
}

// Decision is the outcome of an authorize call. Allowed=false is an expected
// business outcome, not an error.
type Decision struct {
	Allowed   bool
	Remaining int
}

// Ledger tracks the prepaid per-account budget for the current billing
// period. All mutation goes through the idempotent, job-keyed debit.
type Ledger struct {
	sql           infra.SQLExecutor
	logger        infra.Logger
	hardStop      float64
	alertFraction float64
}

func NewLedger(sql infra.SQLExecutor, logger infra.Logger, hardStop, alertFraction float64) *Ledger {
	if hardStop < 1 {
		hardStop = 1
	}
	if alertFraction <= 0 || alertFraction > 1 {
		alertFraction = 0.80
	}
	return &Ledger{sql: sql, logger: logger, hardStop: hardStop, alertFraction: alertFraction}
}

// Balance returns the account's balance for the current period. An account
// with no balance row has an empty allotment, not an error.
func (l *Ledger) Balance(ctx context.Context, accountID string) (domain.QuotaBalance, error) {
	row := l.sql.QueryRow(ctx, sqlinline.QSelectQuotaBalance, accountID)
	var b domain.QuotaBalance
	if err := row.Scan(&b.AccountID, &b.PeriodStart, &b.TotalUnits, &b.ConsumedUnits, &b.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return domain.QuotaBalance{AccountID: accountID}, nil
		}
		return domain.QuotaBalance{}, fmt.Errorf("read quota balance: %w", err)
	}
	return b, nil
}

// Authorize reports whether the account may spend requiredUnits. It never
// mutates state and running over quota is reported via Allowed=false; only
// infrastructure failures surface as errors.
func (l *Ledger) Authorize(ctx context.Context, accountID string, requiredUnits int) (Decision, error) {
	b, err := l.Balance(ctx, accountID)
	if err != nil {
		return Decision{}, err
	}
	ceiling := int(float64(b.TotalUnits) * l.hardStop)
	return Decision{
		Allowed:   b.ConsumedUnits+requiredUnits <= ceiling,
		Remaining: b.Remaining(),
	}, nil
}

// Debit applies the consumption for one completed job. Keyed by job id it is
// idempotent, so at-least-once delivery from the dispatcher is harmless.
func (l *Ledger) Debit(ctx context.Context, accountID, jobID string, kind domain.AssetKind, units int) error {
	if units <= 0 {
		return nil
	}
	row := l.sql.QueryRow(ctx, sqlinline.QDebitQuota, jobID, accountID, string(kind), units)
	var applied int
	if err := row.Scan(&applied); err != nil {
		return fmt.Errorf("debit quota: %w", err)
	}
	if applied == 0 {
		l.logger.Debug().Str("job_id", jobID).Msg("quota: debit replay ignored")
	}
	return nil
}

// Reconcile sweeps completed jobs whose debit never landed and bills them.
// The dispatcher drops a debit after one retry; this is the path that
// eventually settles those. Safe to run concurrently with the dispatcher
// because every debit is job-keyed. Returns how many debits it applied.
func (l *Ledger) Reconcile(ctx context.Context, limit int) (int, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := l.sql.Query(ctx, sqlinline.QSelectUnbilledJobs, limit)
	if err != nil {
		return 0, fmt.Errorf("list unbilled jobs: %w", err)
	}
	defer rows.Close()

	type unbilled struct {
		jobID     string
		accountID string
		jobType   string
		units     int
	}
	var pending []unbilled
	for rows.Next() {
		var u unbilled
		if err := rows.Scan(&u.jobID, &u.accountID, &u.jobType, &u.units); err != nil {
			return 0, fmt.Errorf("scan unbilled job: %w", err)
		}
		pending = append(pending, u)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("list unbilled jobs: %w", err)
	}

	settled := 0
	for _, u := range pending {
		kind := domain.KindForJobType(domain.JobType(u.jobType))
		if err := l.Debit(ctx, u.accountID, u.jobID, kind, u.units); err != nil {
			l.logger.Error().Err(err).Str("job_id", u.jobID).Msg("quota: reconcile debit failed")
			continue
		}
		l.logger.Info().Str("job_id", u.jobID).Int("units", u.units).Msg("quota: reconciled missed debit")
		settled++
	}
	return settled, nil
}

// Credit adds purchased units to the current period's allotment. Billing
// itself lives outside this service; this is the single write it performs.
func (l *Ledger) Credit(ctx context.Context, accountID string, units int) (domain.QuotaBalance, error) {
	row := l.sql.QueryRow(ctx, sqlinline.QCreditQuota, accountID, units)
	b := domain.QuotaBalance{AccountID: accountID}
	if err := row.Scan(&b.TotalUnits, &b.ConsumedUnits); err != nil {
		return domain.QuotaBalance{}, fmt.Errorf("credit quota: %w", err)
	}
	return b, nil
}

// Thresholds returns the advisory per-category warning flags. A category
// trips once overall consumption crosses the alert fraction or the remaining
// units can no longer afford one asset of that category. Purely advisory;
// never blocks.
func (l *Ledger) Thresholds(ctx context.Context, accountID string) (domain.Thresholds, error) {
	b, err := l.Balance(ctx, accountID)
	if err != nil {
		return domain.Thresholds{}, err
	}
	warn := b.TotalUnits > 0 && b.Fraction() >= l.alertFraction
	return domain.Thresholds{
		Images:    warn || b.Remaining() < Cost(domain.AssetKindImage, 1),
		Carousels: warn || b.Remaining() < Cost(domain.AssetKindCarouselSlide, 1),
		Videos:    warn || b.Remaining() < Cost(domain.AssetKindVideo, 1),
	}, nil
}
