package progress

import (
	"sync"
	"testing"
	"time"
)

func drain(t *testing.T, sub *Subscription) []Snapshot {
	t.Helper()
	var out []Snapshot
	timeout := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-sub.C:
			if !ok {
				return out
			}
			out = append(out, snap)
		case <-timeout:
			t.Fatalf("subscription not closed; received %d snapshots", len(out))
		}
	}
}

func TestSubscriberReceivesLatestThenStream(t *testing.T) {
	b := NewBroadcaster(8, nil)
	b.Publish(Snapshot{ProjectID: "p1", Stage: "analyzing", Fraction: 0.5})

	sub := b.Subscribe("p1")
	b.Publish(Snapshot{ProjectID: "p1", Stage: "scripting", Fraction: 0.1})
	b.Publish(Snapshot{ProjectID: "p1", Stage: StageComplete, Fraction: 1})

	got := drain(t, sub)
	if len(got) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(got))
	}
	wantStages := []string{"analyzing", "scripting", StageComplete}
	for i, snap := range got {
		if snap.Stage != wantStages[i] {
			t.Fatalf("snapshot %d: stage %q, want %q", i, snap.Stage, wantStages[i])
		}
		if i > 0 && snap.Sequence <= got[i-1].Sequence {
			t.Fatalf("sequence not increasing: %d after %d", snap.Sequence, got[i-1].Sequence)
		}
	}
	if b.Subscribers("p1") != 0 {
		t.Fatal("terminal snapshot should detach subscribers")
	}
}

func TestSubscribeAfterTerminalYieldsTerminalOnly(t *testing.T) {
	b := NewBroadcaster(8, nil)
	b.Publish(Snapshot{ProjectID: "p1", Stage: "voicing"})
	b.Publish(Snapshot{ProjectID: "p1", Stage: StageFailed, Error: "boom"})

	got := drain(t, b.Subscribe("p1"))
	if len(got) != 1 || got[0].Stage != StageFailed || got[0].Error != "boom" {
		t.Fatalf("unexpected snapshots %+v", got)
	}
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	b := NewBroadcaster(3, nil)
	sub := b.Subscribe("p1")
	for i := 1; i <= 10; i++ {
		b.Publish(Snapshot{ProjectID: "p1", Stage: "capturing", Current: i, Total: 10})
	}
	b.Publish(Snapshot{ProjectID: "p1", Stage: StageComplete})

	got := drain(t, sub)
	if len(got) != 3 {
		t.Fatalf("expected queue of 3, got %d", len(got))
	}
	if got[len(got)-1].Stage != StageComplete {
		t.Fatalf("newest snapshot must survive, got %+v", got[len(got)-1])
	}
	if got[0].Current != 9 || got[1].Current != 10 {
		t.Fatalf("expected the two newest progress snapshots in order, got %+v", got[:2])
	}
	if sub.Dropped() != 8 {
		t.Fatalf("expected 8 dropped snapshots, got %d", sub.Dropped())
	}
}

func TestPublishNeverBlocksWithoutReaders(t *testing.T) {
	b := NewBroadcaster(1, nil)
	_ = b.Subscribe("p1")
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.Publish(Snapshot{ProjectID: "p1", Stage: "voicing", Current: i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a subscriber that never reads")
	}
}

func TestCloseIsolatesSubscribers(t *testing.T) {
	b := NewBroadcaster(8, nil)
	a := b.Subscribe("p1")
	c := b.Subscribe("p1")
	a.Close()
	a.Close()

	b.Publish(Snapshot{ProjectID: "p1", Stage: "analyzing"})
	b.Publish(Snapshot{ProjectID: "p1", Stage: StageComplete})

	if got := drain(t, a); len(got) != 0 {
		t.Fatalf("closed subscription received %d snapshots", len(got))
	}
	if got := drain(t, c); len(got) != 2 {
		t.Fatalf("remaining subscriber should see both snapshots, got %d", len(got))
	}
}

func TestProjectsAreIsolated(t *testing.T) {
	b := NewBroadcaster(8, nil)
	sub := b.Subscribe("p2")
	b.Publish(Snapshot{ProjectID: "p1", Stage: StageComplete})
	b.Publish(Snapshot{ProjectID: "p2", Stage: StageComplete})
	got := drain(t, sub)
	if len(got) != 1 || got[0].ProjectID != "p2" {
		t.Fatalf("unexpected snapshots %+v", got)
	}
	if latest, ok := b.Latest("p1"); !ok || latest.Stage != StageComplete {
		t.Fatalf("unexpected latest for p1: %+v ok=%v", latest, ok)
	}
	b.Forget("p1")
	if _, ok := b.Latest("p1"); ok {
		t.Fatal("expected history dropped after Forget")
	}
}

func TestConcurrentPublishersKeepOrderPerSubscriber(t *testing.T) {
	b := NewBroadcaster(4096, nil)
	sub := b.Subscribe("p1")
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Publish(Snapshot{ProjectID: "p1", Stage: "capturing"})
			}
		}()
	}
	wg.Wait()
	b.Publish(Snapshot{ProjectID: "p1", Stage: StageComplete})

	got := drain(t, sub)
	if len(got) != 401 {
		t.Fatalf("expected 401 snapshots, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Sequence != got[i-1].Sequence+1 {
			t.Fatalf("out of order at %d: %d after %d", i, got[i].Sequence, got[i-1].Sequence)
		}
	}
}

func TestResetDropsTerminalReplay(t *testing.T) {
	b := NewBroadcaster(8, nil)
	b.Publish(Snapshot{ProjectID: "p1", Stage: StageFailed})
	b.Reset("p1")

	if _, ok := b.Latest("p1"); ok {
		t.Fatal("expected no retained snapshot after reset")
	}
	sub := b.Subscribe("p1")
	defer sub.Close()
	b.Publish(Snapshot{ProjectID: "p1", Stage: "pending", Message: "run queued"})
	select {
	case snap := <-sub.C:
		if snap.Stage != "pending" {
			t.Fatalf("expected the new run's snapshot, got %q", snap.Stage)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestSeedOnlyFillsEmptyHistory(t *testing.T) {
	b := NewBroadcaster(8, nil)
	if !b.Seed(Snapshot{ProjectID: "p1", Stage: StageComplete, Fraction: 1}) {
		t.Fatal("expected seed to be stored")
	}
	if b.Seed(Snapshot{ProjectID: "p1", Stage: "pending"}) {
		t.Fatal("seed must not replace existing history")
	}
	got := drain(t, b.Subscribe("p1"))
	if len(got) != 1 || got[0].Stage != StageComplete {
		t.Fatalf("expected seeded terminal snapshot, got %+v", got)
	}

	next := b.Publish(Snapshot{ProjectID: "p1", Stage: "analyzing"})
	if next.Sequence <= got[0].Sequence {
		t.Fatalf("sequence must keep increasing after a seed: %d then %d", got[0].Sequence, next.Sequence)
	}
}

func TestLateReportsAfterTerminalAreDiscarded(t *testing.T) {
	b := NewBroadcaster(8, nil)
	b.Publish(Snapshot{ProjectID: "p1", RunID: "run-1", Stage: "voicing", Fraction: 0.2})
	final := b.Publish(Snapshot{ProjectID: "p1", RunID: "run-1", Stage: StageFailed, Error: "voicing: exceeded 50ms"})

	late := b.Publish(Snapshot{ProjectID: "p1", RunID: "run-1", Stage: "voicing", Fraction: 0.9})
	if late.Sequence != 0 {
		t.Fatalf("late report was sequenced: %+v", late)
	}
	latest, ok := b.Latest("p1")
	if !ok || latest.Sequence != final.Sequence || !latest.Terminal() {
		t.Fatalf("terminal snapshot replaced by late report: %+v", latest)
	}
	got := drain(t, b.Subscribe("p1"))
	if len(got) != 1 || got[0].Stage != StageFailed {
		t.Fatalf("late subscriber should see the terminal snapshot only, got %+v", got)
	}

	next := b.Publish(Snapshot{ProjectID: "p1", RunID: "run-2", Stage: "pending"})
	if next.Sequence == 0 {
		t.Fatal("a new run must be able to publish after the previous terminal snapshot")
	}
}

func TestNilBroadcasterIsInert(t *testing.T) {
	var b *Broadcaster
	if b.Seed(Snapshot{ProjectID: "p1", Stage: StageComplete}) {
		t.Fatal("nil broadcaster stored a seed")
	}
	b.Reset("p1")
	b.Forget("p1")
	if _, ok := b.Latest("p1"); ok {
		t.Fatal("nil broadcaster returned a snapshot")
	}
	if n := b.Subscribers("p1"); n != 0 {
		t.Fatalf("subscribers = %d", n)
	}
	sub := b.Subscribe("p1")
	if got := drain(t, sub); len(got) != 0 {
		t.Fatalf("nil broadcaster delivered %+v", got)
	}
	sub.Close()
	if snap := b.Publish(Snapshot{ProjectID: "p1", Stage: "analyzing"}); snap.Stage != "analyzing" {
		t.Fatalf("publish on nil broadcaster changed the snapshot: %+v", snap)
	}
}
