package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/clock"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/fault"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/types"
)

// MemberContext is the attribute snapshot a rule evaluates against.
type MemberContext struct {
	ID           string
	Name         string
	RankTier     int
	DivisionCode string
	ActiveCodes  map[string]struct{}
}

func (m MemberContext) holds(code string) bool {
	_, ok := m.ActiveCodes[code]
	return ok
}

// Rule is one auto-qualification rule: a type code plus a pure eligibility
// predicate.  Rules are evaluated in list order, independently per member.
type Rule struct {
	Code     string
	Eligible func(MemberContext) bool
}

// DefaultRules returns the auto-qualification rules, keyed on rank tier:
//
//	1 = S3, 2 = S2, 3 = S1, 4 = MS, 5 = PO2, 6 = PO1, 7 = CPO2, 8 = CPO1,
//	9 = NCdt/OCdt, 10 = A/SLt, 11 = SLt/Lt, 12 = Lt(N)/Capt
//
// SWK is manual-only and never auto-granted or auto-revoked; the DSWK rule
// only reads it to stand down once a member holds the senior role.
func DefaultRules() []Rule {
	return []Rule{
		{Code: "APS", Eligible: func(m MemberContext) bool {
			return m.RankTier == 1 && m.DivisionCode != "BMQ"
		}},
		{Code: "BM", Eligible: func(m MemberContext) bool {
			return m.RankTier == 2
		}},
		{Code: "QM", Eligible: func(m MemberContext) bool {
			return m.RankTier == 3
		}},
		{Code: "DSWK", Eligible: func(m MemberContext) bool {
			return m.RankTier >= 4 && m.RankTier <= 12 && !m.holds("SWK")
		}},
	}
}

// syncAllWorkers bounds SyncAll parallelism.
const syncAllWorkers = 4

// QualificationEngine converges each member's automatically managed
// qualifications to the set implied by their current attributes.  Types not
// flagged automatic are never touched, regardless of member attributes.
type QualificationEngine struct {
	members store.MemberStore
	quals   store.QualificationStore
	rules   []Rule
	clock   clock.Clock
	logger  *log.Logger
}

func NewQualificationEngine(members store.MemberStore, quals store.QualificationStore, rules []Rule, clk clock.Clock, logger *log.Logger) *QualificationEngine {
	if rules == nil {
		rules = DefaultRules()
	}
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &QualificationEngine{members: members, quals: quals, rules: rules, clock: clk, logger: logger}
}

// SyncMember evaluates every automatic rule for one member and grants or
// revokes to converge.  Running it twice with unchanged attributes yields an
// empty granted/revoked set the second time.
func (e *QualificationEngine) SyncMember(ctx context.Context, memberID string) (types.MemberSyncResult, error) {
	m, ok, err := e.members.Find(ctx, memberID)
	if err != nil {
		return types.MemberSyncResult{}, err
	}
	if !ok || m.Status != "active" {
		return types.MemberSyncResult{}, fault.NotFound("active member %s", memberID)
	}

	autoTypes, err := e.autoTypes(ctx)
	if err != nil {
		return types.MemberSyncResult{}, err
	}

	mc, err := e.memberContext(ctx, m)
	if err != nil {
		return types.MemberSyncResult{}, err
	}
	return e.converge(ctx, mc, autoTypes)
}

// SyncAll runs SyncMember for every active member.  A failure on one member
// is recorded and does not abort the batch.
func (e *QualificationEngine) SyncAll(ctx context.Context) (types.SyncResult, error) {
	members, err := e.members.ListActive(ctx)
	if err != nil {
		return types.SyncResult{}, err
	}
	autoTypes, err := e.autoTypes(ctx)
	if err != nil {
		return types.SyncResult{}, err
	}

	var (
		mu  sync.Mutex
		res types.SyncResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncAllWorkers)
	for _, m := range members {
		g.Go(func() error {
			mc, err := e.memberContext(gctx, m)
			var mr types.MemberSyncResult
			if err == nil {
				mr, err = e.converge(gctx, mc, autoTypes)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Errors = append(res.Errors, types.SyncError{
					MemberID:   m.ID,
					MemberName: m.DisplayName(),
					Error:      err.Error(),
				})
				return nil
			}
			res.Granted += len(mr.Granted)
			res.Revoked += len(mr.Revoked)
			res.Unchanged += len(mr.Unchanged)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return types.SyncResult{}, err
	}

	e.logger.Printf("qualification sync: members=%d granted=%d revoked=%d unchanged=%d errors=%d",
		len(members), res.Granted, res.Revoked, res.Unchanged, len(res.Errors))
	return res, nil
}

// CanReceiveLockup reports whether a member may hold custody, per their active
// qualifications (engine-granted or manual).
func (e *QualificationEngine) CanReceiveLockup(ctx context.Context, memberID string) (bool, error) {
	return e.quals.CanReceiveLockup(ctx, memberID)
}

func (e *QualificationEngine) converge(ctx context.Context, mc MemberContext, autoTypes map[string]store.QualificationType) (types.MemberSyncResult, error) {
	res := types.MemberSyncResult{MemberID: mc.ID}
	now := e.clock.Now().UTC()

	for _, rule := range e.rules {
		// Only types flagged automatic are ever granted or revoked here.
		if _, ok := autoTypes[rule.Code]; !ok {
			continue
		}

		eligible := rule.Eligible(mc)
		held := mc.holds(rule.Code)

		switch {
		case eligible && !held:
			err := e.quals.Grant(ctx, store.QualificationGrant{
				MemberID:  mc.ID,
				Code:      rule.Code,
				Notes:     "Auto-granted: " + buildReason(rule.Code, mc),
				GrantedAt: now,
			})
			if err != nil {
				return res, fmt.Errorf("grant %s: %w", rule.Code, err)
			}
			mc.ActiveCodes[rule.Code] = struct{}{}
			res.Granted = append(res.Granted, rule.Code)

		case !eligible && held:
			err := e.quals.RevokeActive(ctx, mc.ID, rule.Code, "", "Auto-revoked: "+buildReason(rule.Code, mc), now)
			if err != nil {
				return res, fmt.Errorf("revoke %s: %w", rule.Code, err)
			}
			delete(mc.ActiveCodes, rule.Code)
			res.Revoked = append(res.Revoked, rule.Code)

		default:
			res.Unchanged = append(res.Unchanged, rule.Code)
		}
	}
	return res, nil
}

// buildReason stamps the attributes that triggered a grant or revoke so the
// audit trail explains itself.
func buildReason(code string, mc MemberContext) string {
	switch code {
	case "APS":
		div := mc.DivisionCode
		if div == "" {
			div = "none"
		}
		return fmt.Sprintf("rank tier=%d, division=%s", mc.RankTier, div)
	case "DSWK":
		swk := "no"
		if mc.holds("SWK") {
			swk = "yes"
		}
		return fmt.Sprintf("rank tier=%d, SWK=%s", mc.RankTier, swk)
	default:
		return fmt.Sprintf("rank tier=%d", mc.RankTier)
	}
}

func (e *QualificationEngine) memberContext(ctx context.Context, m store.Member) (MemberContext, error) {
	codes, err := e.quals.ActiveCodes(ctx, m.ID)
	if err != nil {
		return MemberContext{}, err
	}
	return MemberContext{
		ID:           m.ID,
		Name:         m.DisplayName(),
		RankTier:     m.RankTier,
		DivisionCode: m.DivisionCode,
		ActiveCodes:  codes,
	}, nil
}

func (e *QualificationEngine) autoTypes(ctx context.Context) (map[string]store.QualificationType, error) {
	all, err := e.quals.ListTypes(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]store.QualificationType)
	for _, t := range all {
		if t.IsAutomatic {
			out[t.Code] = t
		}
	}
	return out, nil
}
