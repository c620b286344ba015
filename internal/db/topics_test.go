package db

import (
	"testing"

	"github.com/dropline/relay-bot/internal/models"
)

func TestUpsertTopicAndCounter(t *testing.T) {
	store := newTestDB(t)

	if err := store.UpsertTopic(dropsD, 11, models.KindRatio1x8, ""); err != nil {
		t.Fatalf("upsert topic: %v", err)
	}

	topic, err := store.Topic(dropsD, 11)
	if err != nil {
		t.Fatalf("read topic: %v", err)
	}
	if topic == nil || topic.Kind != models.KindRatio1x8 || !topic.IsActive {
		t.Fatalf("topic = %+v, want active 1/8", topic)
	}

	if err := store.IncrementRequired(dropsD, 11); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := store.IncrementRequired(dropsD, 11); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if n, _ := store.RequiredCount(dropsD, 11); n != 2 {
		t.Fatalf("required = %d, want 2", n)
	}

	// the counter floors at zero no matter how often it is decremented
	for i := 0; i < 4; i++ {
		if err := store.DecrementRequired(dropsD, 11); err != nil {
			t.Fatalf("decrement: %v", err)
		}
	}
	if n, _ := store.RequiredCount(dropsD, 11); n != 0 {
		t.Fatalf("required = %d, want 0", n)
	}

	// reconfiguring resets the counter
	if err := store.IncrementRequired(dropsD, 11); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := store.UpsertTopic(dropsD, 11, models.KindRatio1x16, ""); err != nil {
		t.Fatalf("reconfigure topic: %v", err)
	}
	if n, _ := store.RequiredCount(dropsD, 11); n != 0 {
		t.Fatalf("required after reconfigure = %d, want 0", n)
	}
}

func TestReportsTopicSupersession(t *testing.T) {
	store := newTestDB(t)

	if err := store.UpsertTopic(dropsD, 5, models.KindReports, "Reports"); err != nil {
		t.Fatalf("first reports topic: %v", err)
	}
	if err := store.UpsertTopic(dropsD, 6, models.KindReports, "Reports"); err != nil {
		t.Fatalf("second reports topic: %v", err)
	}

	topicID, ok, err := store.ActiveReportsTopic(dropsD)
	if err != nil {
		t.Fatalf("active reports topic: %v", err)
	}
	if !ok || topicID != 6 {
		t.Fatalf("active reports topic = (%d, %v), want (6, true)", topicID, ok)
	}

	// the old topic row survives deactivated
	old, err := store.Topic(dropsD, 5)
	if err != nil {
		t.Fatalf("read superseded topic: %v", err)
	}
	if old == nil || old.IsActive {
		t.Fatalf("superseded topic = %+v, want inactive row", old)
	}
}

func TestOfficeLinks(t *testing.T) {
	store := newTestDB(t)

	if err := store.UpsertTopic(dropsD, 11, models.KindRatio1x8, ""); err != nil {
		t.Fatalf("upsert topic: %v", err)
	}

	if err := store.LinkOffice(11, officeA, true); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := store.LinkOffice(11, officeA, true); err != nil {
		t.Fatalf("repeated link should be a no-op: %v", err)
	}
	if linked, _ := store.IsLinked(11, officeA); !linked {
		t.Fatal("office not linked")
	}

	linked, err := store.ToggleOffice(11, officeA)
	if err != nil || linked {
		t.Fatalf("toggle = (%v, %v), want (false, nil)", linked, err)
	}
	linked, err = store.ToggleOffice(11, officeA)
	if err != nil || !linked {
		t.Fatalf("second toggle = (%v, %v), want (true, nil)", linked, err)
	}

	offices, err := store.LinkedOffices(11)
	if err != nil {
		t.Fatalf("linked offices: %v", err)
	}
	if len(offices) != 1 || offices[0] != officeA {
		t.Fatalf("linked offices = %v, want [%d]", offices, officeA)
	}
}

func TestActiveTopicsForOffice(t *testing.T) {
	store := newTestDB(t)

	if err := store.UpsertTopic(dropsD, 11, models.KindRatio1x8, ""); err != nil {
		t.Fatalf("upsert intake topic: %v", err)
	}
	if err := store.UpsertTopic(dropsD, 12, models.KindRatio1x16, ""); err != nil {
		t.Fatalf("upsert unlinked topic: %v", err)
	}
	if err := store.UpsertTopic(dropsD, 99, models.KindReports, "Reports"); err != nil {
		t.Fatalf("upsert reports topic: %v", err)
	}
	if err := store.LinkOffice(11, officeA, true); err != nil {
		t.Fatalf("link intake topic: %v", err)
	}
	if err := store.LinkOffice(99, officeA, true); err != nil {
		t.Fatalf("link reports topic: %v", err)
	}

	topics, err := store.ActiveTopicsForOffice(officeA, dropsD)
	if err != nil {
		t.Fatalf("topics for office: %v", err)
	}
	if len(topics) != 1 || topics[0].TopicID != 11 {
		t.Fatalf("topics = %+v, want only topic 11", topics)
	}

	if err := store.ResetTopic(dropsD, 11); err != nil {
		t.Fatalf("reset topic: %v", err)
	}
	topics, err = store.ActiveTopicsForOffice(officeA, dropsD)
	if err != nil {
		t.Fatalf("topics after reset: %v", err)
	}
	if len(topics) != 0 {
		t.Fatalf("topics after reset = %+v, want none", topics)
	}
}
