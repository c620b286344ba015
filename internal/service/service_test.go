package service

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dropline/relay-bot/internal/channel"
	"github.com/dropline/relay-bot/internal/db"
	"github.com/dropline/relay-bot/internal/models"
)

const (
	officeA = int64(-101)
	officeB = int64(-102)
	dropsD  = int64(-900)

	intakeTopic  = int64(11)
	reportsTopic = int64(99)
)

type editCall struct {
	Ref      models.MessageRef
	Text     string
	Keyboard channel.Keyboard
}

// fakeChannel records every platform call and hands out sequential message
// ids. Sends replying to an anchor listed in deadAnchors fail the way the
// real platform reports a vanished reply target.
type fakeChannel struct {
	nextID      int
	sent        []channel.SendOptions
	sentRefs    []models.MessageRef
	photos      []channel.PhotoOptions
	edits       []editCall
	deleted     []models.MessageRef
	deadAnchors map[int]bool
}

func (f *fakeChannel) Send(opts channel.SendOptions) (models.MessageRef, error) {
	if opts.ReplyTo != 0 && f.deadAnchors[opts.ReplyTo] {
		return models.MessageRef{}, fmt.Errorf("%w: message to reply not found", channel.ErrNotFound)
	}
	f.nextID++
	ref := models.MessageRef{ChatID: opts.ChatID, MessageID: f.nextID}
	f.sent = append(f.sent, opts)
	f.sentRefs = append(f.sentRefs, ref)
	return ref, nil
}

func (f *fakeChannel) SendPhoto(opts channel.PhotoOptions) (models.MessageRef, error) {
	if opts.ReplyTo != 0 && f.deadAnchors[opts.ReplyTo] {
		return models.MessageRef{}, fmt.Errorf("%w: replied message not found", channel.ErrNotFound)
	}
	f.nextID++
	f.photos = append(f.photos, opts)
	return models.MessageRef{ChatID: opts.ChatID, MessageID: f.nextID}, nil
}

func (f *fakeChannel) Edit(ref models.MessageRef, text string, keyboard channel.Keyboard) error {
	f.edits = append(f.edits, editCall{Ref: ref, Text: text, Keyboard: keyboard})
	return nil
}

func (f *fakeChannel) Delete(ref models.MessageRef) error {
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeChannel) IsAdmin(chatID, userID int64) (bool, error) { return true, nil }

func (f *fakeChannel) lastSend(t *testing.T) channel.SendOptions {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatal("no message was sent")
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeChannel) lastEdit(t *testing.T) editCall {
	t.Helper()
	if len(f.edits) == 0 {
		t.Fatal("no message was edited")
	}
	return f.edits[len(f.edits)-1]
}

// newFixture wires a service over a real on-disk store with one office
// bound to one drops chat, an intake topic linked to the office, and a
// reports topic. The clock is frozen at noon Moscow time.
func newFixture(t *testing.T) (*Service, *db.DB, *fakeChannel) {
	t.Helper()

	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	store, err := db.New(filepath.Join(t.TempDir(), "relay.db"), loc)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.SaveBinding(1, []int64{officeA, officeB}, dropsD); err != nil {
		t.Fatalf("save binding: %v", err)
	}
	if err := store.UpsertTopic(dropsD, intakeTopic, models.KindRatio1x8, ""); err != nil {
		t.Fatalf("configure intake topic: %v", err)
	}
	if err := store.LinkOffice(intakeTopic, officeA, true); err != nil {
		t.Fatalf("link office: %v", err)
	}
	if err := store.UpsertTopic(dropsD, reportsTopic, models.KindReports, "Reports"); err != nil {
		t.Fatalf("configure reports topic: %v", err)
	}

	fake := &fakeChannel{deadAnchors: make(map[int]bool)}
	svc := New(store, fake, loc, zerolog.Nop())
	svc.clock = func() time.Time {
		return time.Date(2026, 8, 29, 12, 0, 0, 0, loc)
	}
	return svc, store, fake
}

func submitter() Submitter {
	return Submitter{ID: 42, Username: "dropuser"}
}

// forwardAndAccept drives one request through matching so decision tests
// start from a forwarded number. Returns the forward message id.
func forwardAndAccept(t *testing.T, svc *Service, fake *fakeChannel, number string) int {
	t.Helper()
	if err := svc.RequestNumber(officeA, 500); err != nil {
		t.Fatalf("request number: %v", err)
	}
	if err := svc.SubmitPhone(dropsD, intakeTopic, number, 600, submitter()); err != nil {
		t.Fatalf("submit phone: %v", err)
	}
	for i, opts := range fake.sent {
		if opts.ChatID == officeA {
			return fake.sentRefs[i].MessageID
		}
	}
	t.Fatal("no forward reached the office chat")
	return 0
}

func TestRequestNumberRaisesDemand(t *testing.T) {
	svc, store, fake := newFixture(t)

	if err := svc.RequestNumber(officeA, 500); err != nil {
		t.Fatalf("request number: %v", err)
	}

	if n, _ := store.RequiredCount(dropsD, intakeTopic); n != 1 {
		t.Fatalf("required = %d, want 1", n)
	}
	if total, _ := store.PendingCount(dropsD); total != 1 {
		t.Fatalf("pending = %d, want 1", total)
	}

	beacon := fake.lastSend(t)
	if beacon.ChatID != dropsD || beacon.TopicID != intakeTopic {
		t.Fatalf("beacon went to (%d, %d), want the intake topic", beacon.ChatID, beacon.TopicID)
	}
	if !strings.Contains(beacon.Text, "Numbers needed: 1") {
		t.Fatalf("beacon text = %q, want the live count", beacon.Text)
	}
	if saved, _ := store.Beacon(dropsD, intakeTopic); saved == nil {
		t.Fatal("beacon message not recorded")
	}
}

func TestRequestNumberRejectsUnknownChats(t *testing.T) {
	svc, _, _ := newFixture(t)

	if err := svc.RequestNumber(-555, 500); !errors.Is(err, ErrNotOfficeChat) {
		t.Fatalf("err = %v, want ErrNotOfficeChat", err)
	}
	// office B is bound but has no linked intake topics
	if err := svc.RequestNumber(officeB, 500); !errors.Is(err, ErrNoLinkedTopics) {
		t.Fatalf("err = %v, want ErrNoLinkedTopics", err)
	}
}

func TestSubmitPhoneMatchesOldestRequest(t *testing.T) {
	svc, store, fake := newFixture(t)

	if err := svc.RequestNumber(officeA, 501); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := svc.RequestNumber(officeA, 502); err != nil {
		t.Fatalf("second request: %v", err)
	}

	if err := svc.SubmitPhone(dropsD, intakeTopic, "возьму +7 912 345-67-89", 601, submitter()); err != nil {
		t.Fatalf("first submission: %v", err)
	}

	var forwards []channel.SendOptions
	for _, opts := range fake.sent {
		if opts.ChatID == officeA {
			forwards = append(forwards, opts)
		}
	}
	if len(forwards) != 1 {
		t.Fatalf("forwards = %d, want 1", len(forwards))
	}
	if forwards[0].ReplyTo != 501 {
		t.Fatalf("forward anchored to %d, want the oldest request 501", forwards[0].ReplyTo)
	}
	if !strings.Contains(forwards[0].Text, "+79123456789") {
		t.Fatalf("forward text = %q, want the normalized number", forwards[0].Text)
	}

	rec, err := store.Phone("+79123456789")
	if err != nil || rec == nil {
		t.Fatalf("record = (%+v, %v), want a stored row", rec, err)
	}
	if rec.Status != models.StatusForwarded {
		t.Fatalf("status = %s, want forwarded", rec.Status)
	}
	if n, _ := store.RequiredCount(dropsD, intakeTopic); n != 1 {
		t.Fatalf("required = %d, want 1 after one match", n)
	}

	// second submission drains the queue
	if err := svc.SubmitPhone(dropsD, intakeTopic, "8 912 345 67 90", 602, submitter()); err != nil {
		t.Fatalf("second submission: %v", err)
	}
	if err := svc.SubmitPhone(dropsD, intakeTopic, "+79123456791", 603, submitter()); !errors.Is(err, ErrNoOpenRequests) {
		t.Fatalf("err = %v, want ErrNoOpenRequests on an empty queue", err)
	}
}

func TestSubmitPhoneScopeMismatch(t *testing.T) {
	svc, store, _ := newFixture(t)

	// a pending request exists, but from an office this topic is not linked to
	if _, err := store.EnqueueRequest(officeB, dropsD, 501); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	err := svc.SubmitPhone(dropsD, intakeTopic, "+79123456789", 601, submitter())
	if !errors.Is(err, ErrOfficeNotLinked) {
		t.Fatalf("err = %v, want ErrOfficeNotLinked", err)
	}
}

func TestSubmitPhoneSkipsDeadAnchors(t *testing.T) {
	svc, store, fake := newFixture(t)

	if err := svc.RequestNumber(officeA, 501); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := svc.RequestNumber(officeA, 502); err != nil {
		t.Fatalf("second request: %v", err)
	}
	fake.deadAnchors[501] = true

	if err := svc.SubmitPhone(dropsD, intakeTopic, "+79123456789", 601, submitter()); err != nil {
		t.Fatalf("submission: %v", err)
	}

	forward := func() channel.SendOptions {
		for _, opts := range fake.sent {
			if opts.ChatID == officeA {
				return opts
			}
		}
		t.Fatal("no forward reached the office")
		return channel.SendOptions{}
	}()
	if forward.ReplyTo != 502 {
		t.Fatalf("forward anchored to %d, want the next live request 502", forward.ReplyTo)
	}

	// only the surviving request remains, and it is fulfilled
	if total, _ := store.PendingCount(dropsD); total != 0 {
		t.Fatalf("pending = %d, want 0 after cleanup and match", total)
	}
	// the dropped request gives its demand back alongside the fulfilled one
	if n, _ := store.RequiredCount(dropsD, intakeTopic); n != 0 {
		t.Fatalf("required = %d, want 0 after cleanup and match", n)
	}
}

func TestSubmitPhoneDeadAnchorLowersDemand(t *testing.T) {
	svc, store, fake := newFixture(t)

	if err := svc.RequestNumber(officeA, 501); err != nil {
		t.Fatalf("request number: %v", err)
	}
	fake.deadAnchors[501] = true

	err := svc.SubmitPhone(dropsD, intakeTopic, "+79123456789", 601, submitter())
	if !errors.Is(err, ErrNoOpenRequests) {
		t.Fatalf("err = %v, want ErrNoOpenRequests once the dead request is gone", err)
	}

	if total, _ := store.PendingCount(dropsD); total != 0 {
		t.Fatalf("pending = %d, want 0", total)
	}
	if n, _ := store.RequiredCount(dropsD, intakeTopic); n != 0 {
		t.Fatalf("required = %d, want 0", n)
	}
	beacon := fake.lastSend(t)
	if !strings.Contains(beacon.Text, "Numbers needed: 0") {
		t.Fatalf("beacon text = %q, want the corrected count", beacon.Text)
	}
}

func TestSubmitPhoneIgnoresNoise(t *testing.T) {
	svc, store, fake := newFixture(t)

	// reports topic never takes submissions
	if err := svc.SubmitPhone(dropsD, reportsTopic, "+79123456789", 601, submitter()); err != nil {
		t.Fatalf("reports topic submission: %v", err)
	}
	// chatter without a number
	if err := svc.SubmitPhone(dropsD, intakeTopic, "hello there", 602, submitter()); err != nil {
		t.Fatalf("chatter: %v", err)
	}
	if len(fake.sent) != 0 {
		t.Fatalf("noise produced %d sends, want none", len(fake.sent))
	}

	if err := store.SetIntakeEnabled(dropsD, false); err != nil {
		t.Fatalf("disable intake: %v", err)
	}
	err := svc.SubmitPhone(dropsD, intakeTopic, "+79123456789", 603, submitter())
	if !errors.Is(err, ErrIntakeDisabled) {
		t.Fatalf("err = %v, want ErrIntakeDisabled", err)
	}
}

func TestSubmitCodeRelaysPhoto(t *testing.T) {
	svc, _, fake := newFixture(t)
	forwardID := forwardAndAccept(t, svc, fake, "+79123456789")

	if err := svc.SubmitCode(officeA, forwardID, "file-abc"); err != nil {
		t.Fatalf("submit code: %v", err)
	}

	if len(fake.photos) != 1 {
		t.Fatalf("photos = %d, want 1", len(fake.photos))
	}
	photo := fake.photos[0]
	if photo.ChatID != dropsD || photo.TopicID != intakeTopic || photo.FileID != "file-abc" {
		t.Fatalf("photo = %+v, want the code relayed into the intake topic", photo)
	}
	if photo.ReplyTo != 600 {
		t.Fatalf("photo anchored to %d, want the submission message 600", photo.ReplyTo)
	}

	edit := fake.lastEdit(t)
	if edit.Ref.MessageID != forwardID || !strings.Contains(edit.Text, "Code sent") {
		t.Fatalf("forward edit = %+v, want the code-sent text", edit)
	}
	if len(edit.Keyboard) == 0 {
		t.Fatal("forward edit lost the decision keyboard")
	}

	// a reply to an unrelated office message is silently ignored
	if err := svc.SubmitCode(officeA, 9999, "file-xyz"); err != nil {
		t.Fatalf("unrelated reply: %v", err)
	}
	if len(fake.photos) != 1 {
		t.Fatalf("unrelated reply relayed a photo")
	}
}

func TestDecideRegistersAndReports(t *testing.T) {
	svc, store, fake := newFixture(t)
	forwardID := forwardAndAccept(t, svc, fake, "+79123456789")

	if err := svc.Decide("+79123456789", OutcomeOK); err != nil {
		t.Fatalf("decide ok: %v", err)
	}

	rec, _ := store.Phone("+79123456789")
	if rec.Status != models.StatusRegistered || rec.RegisteredAt == nil {
		t.Fatalf("record = %+v, want registered with a stamp", rec)
	}

	var report channel.SendOptions
	for _, opts := range fake.sent {
		if opts.TopicID == reportsTopic {
			report = opts
		}
	}
	want := "+79123456789 12:00 @dropuser | 1/8"
	if report.Text != want {
		t.Fatalf("report line = %q, want %q", report.Text, want)
	}
	if rec.ReportRef.MessageID == 0 {
		t.Fatal("report message not recorded on the phone row")
	}

	edit := fake.lastEdit(t)
	if edit.Ref.MessageID != forwardID || !strings.Contains(edit.Text, "Registered") {
		t.Fatalf("forward edit = %+v, want the registered text", edit)
	}

	// a settled number cannot be decided again
	if err := svc.Decide("+79123456789", OutcomeFail); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second decision err = %v, want ErrInvalidState", err)
	}
}

func TestDecideFailReopensNothing(t *testing.T) {
	svc, store, fake := newFixture(t)
	forwardID := forwardAndAccept(t, svc, fake, "+79123456789")

	if err := svc.Decide("+79123456789", OutcomeFail); err != nil {
		t.Fatalf("decide fail: %v", err)
	}

	rec, _ := store.Phone("+79123456789")
	if rec.Status != models.StatusRejected {
		t.Fatalf("status = %s, want rejected", rec.Status)
	}

	var forwardEdit *editCall
	for i := range fake.edits {
		if fake.edits[i].Ref.MessageID == forwardID {
			forwardEdit = &fake.edits[i]
		}
	}
	if forwardEdit == nil || !strings.Contains(forwardEdit.Text, "Not registered") {
		t.Fatalf("forward edit = %+v, want the rejection text", forwardEdit)
	}
	if len(forwardEdit.Keyboard) != 0 {
		t.Fatal("rejected forward kept its keyboard")
	}

	// the rejection does not touch the demand counter
	if n, _ := store.RequiredCount(dropsD, intakeTopic); n != 0 {
		t.Fatalf("required = %d, want 0", n)
	}
}

func TestDecideRepeatPromptsTheDrop(t *testing.T) {
	svc, store, fake := newFixture(t)
	forwardID := forwardAndAccept(t, svc, fake, "+79123456789")

	if err := svc.Decide("+79123456789", OutcomeRepeat); err != nil {
		t.Fatalf("decide repeat: %v", err)
	}

	prompt := fake.lastSend(t)
	if prompt.ChatID != dropsD || prompt.TopicID != intakeTopic || prompt.ReplyTo != 600 {
		t.Fatalf("prompt = %+v, want a reply under the submission", prompt)
	}
	if !strings.Contains(prompt.Text, "fresh code") {
		t.Fatalf("prompt text = %q, want the repeat wording", prompt.Text)
	}

	// the number stays decidable
	rec, _ := store.Phone("+79123456789")
	if rec.Status != models.StatusForwarded {
		t.Fatalf("status = %s, want forwarded after repeat", rec.Status)
	}
	edit := fake.lastEdit(t)
	if edit.Ref.MessageID != forwardID || len(edit.Keyboard) == 0 {
		t.Fatalf("forward edit = %+v, want the decision keyboard restored", edit)
	}
}

func TestDecideUnknownPhone(t *testing.T) {
	svc, _, _ := newFixture(t)
	if err := svc.Decide("+79990000000", OutcomeOK); !errors.Is(err, ErrUnknownPhone) {
		t.Fatalf("err = %v, want ErrUnknownPhone", err)
	}
}

func TestRevokeAnnotatesElapsedTime(t *testing.T) {
	svc, store, fake := newFixture(t)
	forwardID := forwardAndAccept(t, svc, fake, "+79123456789")

	if err := svc.Decide("+79123456789", OutcomeOK); err != nil {
		t.Fatalf("decide ok: %v", err)
	}

	loc := store.Location()
	svc.clock = func() time.Time {
		return time.Date(2026, 8, 29, 12, 1, 30, 0, loc)
	}
	if err := svc.Revoke("+79123456789"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	rec, _ := store.Phone("+79123456789")
	if rec.Status != models.StatusRevoked || rec.RevokedAt == nil {
		t.Fatalf("record = %+v, want revoked with a stamp", rec)
	}

	var reportEdit, officeEdit *editCall
	for i := range fake.edits {
		switch fake.edits[i].Ref.MessageID {
		case rec.ReportRef.MessageID:
			reportEdit = &fake.edits[i]
		case forwardID:
			officeEdit = &fake.edits[i]
		}
	}
	wantLine := "+79123456789 12:00-12:01 (01:30) @dropuser | 1/8"
	if reportEdit == nil || reportEdit.Text != wantLine {
		t.Fatalf("report edit = %+v, want %q", reportEdit, wantLine)
	}
	if officeEdit == nil || !strings.Contains(officeEdit.Text, "Revoked after 01:30") {
		t.Fatalf("office edit = %+v, want the elapsed annotation", officeEdit)
	}

	// revoked is terminal
	if err := svc.Revoke("+79123456789"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second revoke err = %v, want ErrInvalidState", err)
	}
}

func TestRevokeRequiresRegistered(t *testing.T) {
	svc, _, fake := newFixture(t)
	forwardAndAccept(t, svc, fake, "+79123456789")

	if err := svc.Revoke("+79123456789"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("revoking a forwarded number err = %v, want ErrInvalidState", err)
	}
}

func TestRefreshBeaconReplacesOldMessage(t *testing.T) {
	svc, store, fake := newFixture(t)

	if err := svc.RefreshBeacon(dropsD, intakeTopic); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	first, _ := store.Beacon(dropsD, intakeTopic)
	if first == nil {
		t.Fatal("first beacon not recorded")
	}

	if err := svc.RefreshBeacon(dropsD, intakeTopic); err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	if len(fake.deleted) != 1 || fake.deleted[0].MessageID != first.MessageID {
		t.Fatalf("deleted = %+v, want the first beacon removed", fake.deleted)
	}
	second, _ := store.Beacon(dropsD, intakeTopic)
	if second == nil || second.MessageID == first.MessageID {
		t.Fatalf("beacon = %+v, want a fresh message id", second)
	}
}
