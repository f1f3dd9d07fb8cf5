package service

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/clock"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/fault"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/opcal"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/types"
)

// checkoutActor tags presence events written during an execution.
const checkoutActor = "lockup-checkout"

// defaultHistoryLimit bounds a history page when the caller gives no limit.
const defaultHistoryLimit = 50

var validTransferReasons = map[string]bool{
	types.ReasonManual:            true,
	types.ReasonDDSHandoff:        true,
	types.ReasonDutyWatchTakeover: true,
	types.ReasonCheckoutTransfer:  true,
}

// LockupDeps are the collaborators a LockupService needs.  Nil Broadcast,
// Clock, and Logger get working defaults.
type LockupDeps struct {
	Lockups   store.LockupStore
	Members   store.MemberStore
	Quals     store.QualificationStore
	Presence  store.PresenceStore
	Calendar  *opcal.Calendar
	Clock     clock.Clock
	Broadcast Broadcaster
	Logger    *log.Logger
}

// LockupService owns the custody state machine for the building: who holds
// lockup responsibility, how it moves between members, and how the building
// gets secured at the end of a night.
type LockupService struct {
	lockups   store.LockupStore
	members   store.MemberStore
	quals     store.QualificationStore
	presence  store.PresenceStore
	cal       *opcal.Calendar
	clock     clock.Clock
	broadcast Broadcaster
	logger    *log.Logger
}

func NewLockupService(deps LockupDeps) *LockupService {
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if deps.Broadcast == nil {
		deps.Broadcast = NopBroadcaster{}
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	return &LockupService{
		lockups:   deps.Lockups,
		members:   deps.Members,
		quals:     deps.Quals,
		presence:  deps.Presence,
		cal:       deps.Calendar,
		clock:     deps.Clock,
		broadcast: deps.Broadcast,
		logger:    deps.Logger,
	}
}

// currentDay returns today's custody record, creating an open one on first
// touch of the operational day.  A create losing to a concurrent create is
// fine; we re-read.
func (s *LockupService) currentDay(ctx context.Context) (store.LockupDay, error) {
	date := s.cal.DateString(s.clock.Now())
	day, ok, err := s.lockups.FindDay(ctx, date)
	if err != nil {
		return store.LockupDay{}, err
	}
	if ok {
		return day, nil
	}

	now := s.clock.Now().UTC()
	day, err = s.lockups.CreateDay(ctx, store.LockupDay{
		Date:           date,
		BuildingStatus: types.StatusOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err == nil {
		return day, nil
	}
	if errors.Is(err, fault.ErrConflict) {
		day, _, err = s.lockups.FindDay(ctx, date)
		return day, err
	}
	return store.LockupDay{}, err
}

// Status returns the custody snapshot for the given operational date, or for
// today when date is empty.  Today's record is created on demand so the kiosk
// always has a row to render.
func (s *LockupService) Status(ctx context.Context, date string) (types.LockupStatus, error) {
	var (
		day store.LockupDay
		err error
	)
	if date == "" || date == s.cal.DateString(s.clock.Now()) {
		day, err = s.currentDay(ctx)
		if err != nil {
			return types.LockupStatus{}, err
		}
	} else {
		if _, err = s.cal.ParseDate(date); err != nil {
			return types.LockupStatus{}, err
		}
		var ok bool
		day, ok, err = s.lockups.FindDay(ctx, date)
		if err != nil {
			return types.LockupStatus{}, err
		}
		if !ok {
			return types.LockupStatus{}, fault.NotFound("no lockup record for %s", date)
		}
	}
	return s.statusOf(ctx, day), nil
}

func (s *LockupService) statusOf(ctx context.Context, day store.LockupDay) types.LockupStatus {
	st := types.LockupStatus{
		Date:            day.Date,
		BuildingStatus:  day.BuildingStatus,
		CurrentHolderID: day.CurrentHolderID,
		SecuredBy:       day.SecuredBy,
		ServerTime:      s.clock.Now().UTC().Format(time.RFC3339),
	}
	if day.AcquiredAt != nil {
		st.AcquiredAt = day.AcquiredAt.UTC().Format(time.RFC3339)
	}
	if day.SecuredAt != nil {
		st.SecuredAt = day.SecuredAt.UTC().Format(time.RFC3339)
	}
	if day.CurrentHolderID != nil {
		if m, ok, err := s.members.Find(ctx, *day.CurrentHolderID); err == nil && ok {
			st.HolderName = m.DisplayName()
		}
	}
	return st
}

// Acquire gives an unheld lockup to the requesting member.  Fails with
// Conflict when someone already holds it, NotQualified when the member has no
// custody-eligible qualification, and Validation when they are not checked in.
func (s *LockupService) Acquire(ctx context.Context, req types.AcquireRequest) (types.LockupStatus, error) {
	m, ok, err := s.members.Find(ctx, req.MemberID)
	if err != nil {
		return types.LockupStatus{}, err
	}
	if !ok || m.Status != "active" {
		return types.LockupStatus{}, fault.NotFound("active member %s", req.MemberID)
	}

	day, err := s.currentDay(ctx)
	if err != nil {
		return types.LockupStatus{}, err
	}
	if day.BuildingStatus == types.StatusSecured {
		return types.LockupStatus{}, fault.Conflict("building already secured for %s", day.Date)
	}
	if day.CurrentHolderID != nil {
		return types.LockupStatus{}, fault.Conflict("lockup already held by member %s", *day.CurrentHolderID)
	}

	eligible, err := s.quals.CanReceiveLockup(ctx, m.ID)
	if err != nil {
		return types.LockupStatus{}, err
	}
	if !eligible {
		return types.LockupStatus{}, fault.NotQualified("member %s holds no lockup-eligible qualification", m.ID)
	}

	in, err := s.presence.IsCheckedIn(ctx, m.ID)
	if err != nil {
		return types.LockupStatus{}, err
	}
	if !in {
		return types.LockupStatus{}, fault.Validation("member %s is not checked in", m.ID)
	}

	now := s.clock.Now().UTC()
	id := m.ID
	if err := s.lockups.SwapHolder(ctx, day.Date, nil, &id, now); err != nil {
		return types.LockupStatus{}, err
	}

	ev := store.TransferEvent{
		ID:            uuid.NewString(),
		Date:          day.Date,
		FromMemberID:  nil,
		ToMemberID:    m.ID,
		Reason:        types.ReasonManual,
		Notes:         req.Notes,
		TransferredAt: now,
	}
	if err := s.lockups.AppendTransfer(ctx, ev); err != nil {
		return types.LockupStatus{}, err
	}

	s.logger.Printf("lockup acquired: date=%s member=%s", day.Date, m.ID)
	s.publishTransfer(ev, "", m.DisplayName())

	day, _, err = s.lockups.FindDay(ctx, day.Date)
	if err != nil {
		return types.LockupStatus{}, err
	}
	st := s.statusOf(ctx, day)
	s.publishStatus(st)
	return st, nil
}

// Transfer moves custody from the current holder to another qualified,
// checked-in member.  The conditional holder swap means two racing transfers
// resolve to exactly one winner; the loser gets Conflict.
func (s *LockupService) Transfer(ctx context.Context, req types.TransferRequest) (types.TransferResult, error) {
	reason := req.Reason
	if reason == "" {
		reason = types.ReasonManual
	}
	if !validTransferReasons[reason] {
		return types.TransferResult{}, fault.Validation("unknown transfer reason %q", reason)
	}

	day, err := s.currentDay(ctx)
	if err != nil {
		return types.TransferResult{}, err
	}
	if day.BuildingStatus == types.StatusSecured {
		return types.TransferResult{}, fault.Conflict("building already secured for %s", day.Date)
	}
	if day.CurrentHolderID == nil {
		return types.TransferResult{}, fault.Validation("no active lockup holder to transfer from")
	}
	fromID := *day.CurrentHolderID

	to, ok, err := s.members.Find(ctx, req.ToMemberID)
	if err != nil {
		return types.TransferResult{}, err
	}
	if !ok || to.Status != "active" {
		return types.TransferResult{}, fault.NotFound("active member %s", req.ToMemberID)
	}

	eligible, err := s.quals.CanReceiveLockup(ctx, to.ID)
	if err != nil {
		return types.TransferResult{}, err
	}
	if !eligible {
		return types.TransferResult{}, fault.NotQualified("member %s holds no lockup-eligible qualification", to.ID)
	}

	in, err := s.presence.IsCheckedIn(ctx, to.ID)
	if err != nil {
		return types.TransferResult{}, err
	}
	if !in {
		return types.TransferResult{}, fault.Validation("member %s is not checked in", to.ID)
	}

	now := s.clock.Now().UTC()
	from, toID := fromID, to.ID
	if err := s.lockups.SwapHolder(ctx, day.Date, &from, &toID, now); err != nil {
		return types.TransferResult{}, err
	}

	ev := store.TransferEvent{
		ID:            uuid.NewString(),
		Date:          day.Date,
		FromMemberID:  &from,
		ToMemberID:    to.ID,
		Reason:        reason,
		Notes:         req.Notes,
		TransferredAt: now,
	}
	if err := s.lockups.AppendTransfer(ctx, ev); err != nil {
		return types.TransferResult{}, err
	}

	s.logger.Printf("lockup transferred: date=%s from=%s to=%s reason=%s", day.Date, fromID, to.ID, reason)
	s.publishTransfer(ev, s.memberName(ctx, fromID), to.DisplayName())
	if day, _, err := s.lockups.FindDay(ctx, day.Date); err == nil {
		s.publishStatus(s.statusOf(ctx, day))
	}

	return types.TransferResult{
		TransferID:    ev.ID,
		FromMemberID:  fromID,
		ToMemberID:    to.ID,
		Reason:        reason,
		TransferredAt: now.Format(time.RFC3339),
	}, nil
}

// Execute performs the lockup: force-checks everyone out, records the
// execution, and marks the building secured.  The performer must hold custody;
// a qualified member may execute an unheld lockup (claiming custody first, so
// the secure step stays conditional on them).
func (s *LockupService) Execute(ctx context.Context, req types.ExecuteRequest) (types.ExecuteResult, error) {
	m, ok, err := s.members.Find(ctx, req.MemberID)
	if err != nil {
		return types.ExecuteResult{}, err
	}
	if !ok || m.Status != "active" {
		return types.ExecuteResult{}, fault.NotFound("active member %s", req.MemberID)
	}

	day, err := s.currentDay(ctx)
	if err != nil {
		return types.ExecuteResult{}, err
	}
	if day.BuildingStatus == types.StatusSecured {
		return types.ExecuteResult{}, fault.Conflict("building already secured for %s", day.Date)
	}

	now := s.clock.Now().UTC()
	id := m.ID

	switch {
	case day.CurrentHolderID != nil && *day.CurrentHolderID == m.ID:
		// Holder executing their own lockup.
	case day.CurrentHolderID == nil:
		eligible, err := s.quals.CanReceiveLockup(ctx, m.ID)
		if err != nil {
			return types.ExecuteResult{}, err
		}
		if !eligible {
			return types.ExecuteResult{}, fault.NotQualified("member %s holds no lockup-eligible qualification", m.ID)
		}
		// Claim custody so the secure step below is conditional on us.
		if err := s.lockups.SwapHolder(ctx, day.Date, nil, &id, now); err != nil {
			return types.ExecuteResult{}, err
		}
		ev := store.TransferEvent{
			ID:            uuid.NewString(),
			Date:          day.Date,
			ToMemberID:    m.ID,
			Reason:        types.ReasonManual,
			Notes:         "Claimed at execution",
			TransferredAt: now,
		}
		if err := s.lockups.AppendTransfer(ctx, ev); err != nil {
			return types.ExecuteResult{}, err
		}
		s.publishTransfer(ev, "", m.DisplayName())
	default:
		return types.ExecuteResult{}, fault.NotQualified("member %s does not hold lockup", m.ID)
	}

	if err := s.lockups.MarkLockingUp(ctx, day.Date); err != nil {
		return types.ExecuteResult{}, err
	}

	membersOut, visitorsOut := s.checkoutEveryone(ctx, m.ID, now)

	if err := s.lockups.MarkSecured(ctx, day.Date, &id, m.ID, now); err != nil {
		return types.ExecuteResult{}, err
	}

	// Record the execution only once the secure write has won; a losing
	// execute must not leave an audit row for a day it never secured.
	exec := store.ExecutionEvent{
		ID:                 uuid.NewString(),
		Date:               day.Date,
		ExecutedBy:         m.ID,
		MembersCheckedOut:  membersOut,
		VisitorsCheckedOut: visitorsOut,
		Notes:              req.Note,
		ExecutedAt:         now,
	}
	if err := s.lockups.AppendExecution(ctx, exec); err != nil {
		s.logger.Printf("lockup execute: record execution for %s: %v", day.Date, err)
	}

	s.logger.Printf("lockup executed: date=%s by=%s members_out=%d visitors_out=%d",
		day.Date, m.ID, len(membersOut), len(visitorsOut))
	s.broadcast.Publish(Event{
		Name: EventLockupExecuted,
		At:   now,
		Payload: map[string]any{
			"execution_id": exec.ID,
			"date":         day.Date,
			"executed_by":  m.ID,
			"members_out":  len(membersOut),
			"visitors_out": len(visitorsOut),
		},
	})
	if day, _, err := s.lockups.FindDay(ctx, day.Date); err == nil {
		s.publishStatus(s.statusOf(ctx, day))
	}

	return types.ExecuteResult{
		ExecutionID: exec.ID,
		MembersOut:  len(membersOut),
		VisitorsOut: len(visitorsOut),
		ExecutedAt:  now.Format(time.RFC3339),
	}, nil
}

// checkoutEveryone force-checks out all present members and visitors.  The
// performer goes last so they stay in until the building is empty.  A failure
// on one person is logged and skipped; the execution proceeds.
func (s *LockupService) checkoutEveryone(ctx context.Context, performerID string, at time.Time) (members, visitors []string) {
	present, err := s.presence.ListPresentMembers(ctx)
	if err != nil {
		s.logger.Printf("execute: list present members: %v", err)
		present = nil
	}
	var performerPresent bool
	for _, p := range present {
		if p.ID == performerID {
			performerPresent = true
			continue
		}
		if err := s.presence.ForceCheckoutMember(ctx, p.ID, checkoutActor, at); err != nil {
			s.logger.Printf("execute: checkout member %s: %v", p.ID, err)
			continue
		}
		members = append(members, p.ID)
	}

	vs, err := s.presence.ListPresentVisitors(ctx)
	if err != nil {
		s.logger.Printf("execute: list present visitors: %v", err)
		vs = nil
	}
	for _, v := range vs {
		if err := s.presence.ForceCheckoutVisitor(ctx, v.ID, checkoutActor, at); err != nil {
			s.logger.Printf("execute: checkout visitor %s: %v", v.ID, err)
			continue
		}
		visitors = append(visitors, v.ID)
	}

	if performerPresent {
		if err := s.presence.ForceCheckoutMember(ctx, performerID, checkoutActor, at); err != nil {
			s.logger.Printf("execute: checkout performer %s: %v", performerID, err)
		} else {
			members = append(members, performerID)
		}
	}
	return members, visitors
}

// CheckoutOptions tells the kiosk what the given member may do when leaving.
// The current custody holder cannot simply walk out; they must hand off or
// execute first.
func (s *LockupService) CheckoutOptions(ctx context.Context, memberID string) (types.CheckoutOptions, error) {
	if _, ok, err := s.members.Find(ctx, memberID); err != nil {
		return types.CheckoutOptions{}, err
	} else if !ok {
		return types.CheckoutOptions{}, fault.NotFound("member %s", memberID)
	}

	day, err := s.currentDay(ctx)
	if err != nil {
		return types.CheckoutOptions{}, err
	}

	opts := types.CheckoutOptions{MemberID: memberID}
	if day.CurrentHolderID == nil || *day.CurrentHolderID != memberID || day.BuildingStatus == types.StatusSecured {
		opts.CanCheckout = true
		opts.AvailableOptions = []string{types.OptionNormalCheckout}
		return opts, nil
	}

	opts.HoldsLockup = true
	opts.BlockReason = "You must transfer or execute lockup before checking out"
	opts.AvailableOptions = []string{types.OptionExecuteLockup}

	eligible, err := s.quals.ListLockupEligible(ctx)
	if err != nil {
		return types.CheckoutOptions{}, err
	}
	for _, m := range eligible {
		if m.ID == memberID {
			continue
		}
		in, err := s.presence.IsCheckedIn(ctx, m.ID)
		if err != nil {
			return types.CheckoutOptions{}, err
		}
		if !in {
			continue
		}
		opts.EligibleRecipients = append(opts.EligibleRecipients, types.Recipient{
			ID:            m.ID,
			Name:          m.DisplayName(),
			Rank:          m.Rank,
			ServiceNumber: m.ServiceNumber,
		})
	}
	if len(opts.EligibleRecipients) > 0 {
		opts.AvailableOptions = append([]string{types.OptionTransferLockup}, opts.AvailableOptions...)
	}
	return opts, nil
}

// History returns transfers and executions merged newest-first.  startDate and
// endDate are optional YYYY-MM-DD bounds on the operational calendar; endDate
// is inclusive.
func (s *LockupService) History(ctx context.Context, startDate, endDate string, limit, offset int) (types.HistoryPage, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	var start, end *time.Time
	if startDate != "" {
		t, err := s.cal.ParseDate(startDate)
		if err != nil {
			return types.HistoryPage{}, err
		}
		start = &t
	}
	if endDate != "" {
		t, err := s.cal.ParseDate(endDate)
		if err != nil {
			return types.HistoryPage{}, err
		}
		e := t.AddDate(0, 0, 1) // inclusive end date, exclusive bound
		end = &e
	}

	// Over-fetch from each source so the merged page is complete regardless of
	// how the two streams interleave.
	fetch := offset + limit
	transfers, err := s.lockups.ListTransfers(ctx, start, end, fetch, 0)
	if err != nil {
		return types.HistoryPage{}, err
	}
	executions, err := s.lockups.ListExecutions(ctx, start, end, fetch, 0)
	if err != nil {
		return types.HistoryPage{}, err
	}

	items := make([]types.HistoryItem, 0, len(transfers)+len(executions))
	for _, t := range transfers {
		item := types.HistoryItem{
			ID:         t.ID,
			Type:       "transfer",
			ToMemberID: t.ToMemberID,
			Reason:     t.Reason,
			Notes:      t.Notes,
			Timestamp:  t.TransferredAt.UTC().Format(time.RFC3339),
		}
		if t.FromMemberID != nil {
			item.FromMemberID = *t.FromMemberID
		}
		items = append(items, item)
	}
	for _, e := range executions {
		items = append(items, types.HistoryItem{
			ID:          e.ID,
			Type:        "execution",
			ExecutedBy:  e.ExecutedBy,
			MembersOut:  len(e.MembersCheckedOut),
			VisitorsOut: len(e.VisitorsCheckedOut),
			Notes:       e.Notes,
			Timestamp:   e.ExecutedAt.UTC().Format(time.RFC3339),
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp > items[j].Timestamp
	})

	tTotal, err := s.lockups.CountTransfers(ctx, start, end)
	if err != nil {
		return types.HistoryPage{}, err
	}
	eTotal, err := s.lockups.CountExecutions(ctx, start, end)
	if err != nil {
		return types.HistoryPage{}, err
	}
	total := tTotal + eTotal

	if offset > len(items) {
		offset = len(items)
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}

	return types.HistoryPage{
		Items:   items,
		Total:   total,
		HasMore: offset+len(items) < total,
	}, nil
}

// PresentSnapshot lists everyone currently inside, for the lockup
// confirmation screen.
func (s *LockupService) PresentSnapshot(ctx context.Context) (types.PresentSnapshot, error) {
	ms, err := s.presence.ListPresentMembers(ctx)
	if err != nil {
		return types.PresentSnapshot{}, err
	}
	vs, err := s.presence.ListPresentVisitors(ctx)
	if err != nil {
		return types.PresentSnapshot{}, err
	}

	snap := types.PresentSnapshot{
		Members:  make([]types.PresentMember, 0, len(ms)),
		Visitors: make([]types.PresentVisitor, 0, len(vs)),
	}
	for _, m := range ms {
		snap.Members = append(snap.Members, types.PresentMember{
			ID:          m.ID,
			Name:        m.Name,
			Rank:        m.Rank,
			CheckedInAt: m.LastCheckinAt.UTC().Format(time.RFC3339),
		})
	}
	for _, v := range vs {
		snap.Visitors = append(snap.Visitors, types.PresentVisitor{
			ID:          v.ID,
			Name:        v.Name,
			CheckedInAt: v.CheckInAt.UTC().Format(time.RFC3339),
		})
	}
	return snap, nil
}

func (s *LockupService) memberName(ctx context.Context, id string) string {
	m, ok, err := s.members.Find(ctx, id)
	if err != nil || !ok {
		return id
	}
	return m.DisplayName()
}

func (s *LockupService) publishTransfer(ev store.TransferEvent, fromName, toName string) {
	payload := map[string]any{
		"transfer_id": ev.ID,
		"date":        ev.Date,
		"to":          ev.ToMemberID,
		"to_name":     toName,
		"reason":      ev.Reason,
	}
	if ev.FromMemberID != nil {
		payload["from"] = *ev.FromMemberID
		payload["from_name"] = fromName
	}
	s.broadcast.Publish(Event{Name: EventLockupTransferred, At: ev.TransferredAt, Payload: payload})
}

func (s *LockupService) publishStatus(st types.LockupStatus) {
	payload := map[string]any{
		"date":            st.Date,
		"building_status": st.BuildingStatus,
		"holder_name":     st.HolderName,
	}
	if st.CurrentHolderID != nil {
		payload["current_holder_id"] = *st.CurrentHolderID
	}
	s.broadcast.Publish(Event{Name: EventLockupStatus, At: s.clock.Now().UTC(), Payload: payload})
}
