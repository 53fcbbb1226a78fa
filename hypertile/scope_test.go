// scope_test.go - Tests fuer Installation und Wiederherstellung der Interceptoren
package hypertile

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/7blacky7/hypertile/ml"
	"github.com/7blacky7/hypertile/ml/nn"
)

func TestTargets(t *testing.T) {
	net := newNetwork(
		"attn1", &recorder{},
		"attn2", &recorder{},
		"block.attn_2", &recorder{},
		"cross", &recorder{cross: true},
		"proj", plain{},
		"mid.attn_1", &recorder{},
	)

	var names []string
	for _, m := range Targets(net) {
		names = append(names, m.Name)
	}

	if diff := cmp.Diff([]string{"attn1", "mid.attn_1"}, names); diff != "" {
		t.Errorf("Targets (-want +got):\n%s", diff)
	}
}

func TestSplitAttentionInstallsAndCloses(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	net := newNetwork("a", a, "b", b)

	s, err := SplitAttention(net, newTestJob(512, 512), DefaultTileOptions())
	if err != nil {
		t.Fatal(err)
	}

	if !a.Installed() || !b.Installed() {
		t.Fatal("Interceptoren nicht installiert")
	}
	if diff := cmp.Diff([]string{"a", "b"}, s.Patched()); diff != "" {
		t.Errorf("Patched (-want +got):\n%s", diff)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if a.Installed() || b.Installed() {
		t.Error("Interceptoren nach Close noch installiert")
	}

	// mehrfaches Close ist erlaubt
	if err := s.Close(); err != nil {
		t.Errorf("zweites Close: %v", err)
	}
	if len(s.Patched()) != 0 {
		t.Errorf("Patched nach Close = %v", s.Patched())
	}
}

func TestWithSplitAttentionRestoresOnError(t *testing.T) {
	a := &recorder{}
	net := newNetwork("a", a)
	errBoom := errors.New("boom")

	err := WithSplitAttention(net, newTestJob(512, 512), DefaultTileOptions(), func() error {
		if !a.Installed() {
			t.Error("Interceptor im Scope nicht aktiv")
		}
		return errBoom
	})

	if !errors.Is(err, errBoom) {
		t.Errorf("err = %v, erwartet boom", err)
	}
	if a.Installed() {
		t.Error("Interceptor nach Fehler noch installiert")
	}
}

func TestWithSplitAttentionRestoresOnPanic(t *testing.T) {
	a := &recorder{}
	net := newNetwork("a", a)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("Panic wurde verschluckt")
			}
		}()

		_ = WithSplitAttention(net, newTestJob(512, 512), DefaultTileOptions(), func() error {
			panic("boom")
		})
	}()

	if a.Installed() {
		t.Error("Interceptor nach Panic noch installiert")
	}

	// das Netzwerk laeuft danach wieder ohne Interceptor
	x := ml.Zeros(1, 4, 8, 8)
	if _, err := net.Forward(x); err != nil {
		t.Fatal(err)
	}
}

func TestSplitAttentionBusyRollsBack(t *testing.T) {
	shared := &recorder{}
	first, err := SplitAttention(newNetwork("shared", shared), newTestJob(512, 512), DefaultTileOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()

	fresh := &recorder{}
	_, err = SplitAttention(newNetwork("fresh", fresh, "shared", shared), newTestJob(512, 512), DefaultTileOptions())
	if !errors.Is(err, nn.ErrHookBusy) {
		t.Fatalf("err = %v, erwartet ErrHookBusy", err)
	}

	if fresh.Installed() {
		t.Error("bereits installierter Interceptor wurde nicht zurueckgerollt")
	}
	if !shared.Installed() {
		t.Error("Interceptor des ersten Scopes wurde entfernt")
	}
}

func TestSplitAttentionNoTargets(t *testing.T) {
	s, err := SplitAttention(newNetwork("proj", plain{}), newTestJob(512, 512), DefaultTileOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Patched()) != 0 {
		t.Errorf("Patched = %v, erwartet leer", s.Patched())
	}
	if err := s.Close(); err != nil {
		t.Error(err)
	}
}

func TestSplitAttentionInvalid(t *testing.T) {
	a := &recorder{}
	net := newNetwork("a", a)

	// Job ohne Begin hat keine Dimensionen
	if _, err := SplitAttention(net, NewJob(WithLogger(discardLogger())), DefaultTileOptions()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("ohne Dimensionen: err = %v, erwartet ErrConfiguration", err)
	}

	opts := DefaultTileOptions()
	opts.SwapSize = 0
	if _, err := SplitAttention(net, newTestJob(512, 512), opts); !errors.Is(err, ErrConfiguration) {
		t.Errorf("SwapSize 0: err = %v, erwartet ErrConfiguration", err)
	}

	if a.Installed() {
		t.Error("Interceptor trotz Fehler installiert")
	}
}

func TestSplitAttentionResetsReporter(t *testing.T) {
	rep := &fakeReporter{}
	job := newTestJob(512, 512, WithReporter(rep))
	before := rep.resets

	s, err := SplitAttention(newNetwork("a", &recorder{}), job, DefaultTileOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if rep.resets != before+1 {
		t.Errorf("Reset %d mal aufgerufen, erwartet %d", rep.resets, before+1)
	}
}

func TestNopScope(t *testing.T) {
	s := NopScope(ErrNoTarget)
	if !errors.Is(s.Skipped(), ErrNoTarget) {
		t.Errorf("Skipped = %v", s.Skipped())
	}
	if len(s.Patched()) != 0 {
		t.Errorf("Patched = %v", s.Patched())
	}
	if err := s.Close(); err != nil {
		t.Error(err)
	}
}
