package rtcore_test

import (
	"errors"
	"testing"

	"github.com/haldane-labs/continuum/rtcore"
)

func TestLocalsCurrentNilBeforeRunWith(t *testing.T) {
	l := rtcore.NewLocals()
	if l.Current() != nil {
		t.Fatal("Current() should be nil before any RunWith call")
	}
}

func TestRunWithInstallsAndRestores(t *testing.T) {
	l := rtcore.NewLocals()
	outer := rtcore.New()
	l.RunWith(outer, func() (rtcore.Value, error) {
		if l.Current() != outer {
			t.Error("Current() inside RunWith did not return the installed context")
		}
		return nil, nil
	})
	if l.Current() != nil {
		t.Error("Current() after RunWith returns should revert to the pre-call value (nil)")
	}
}

func TestRunWithRestoresOnPanic(t *testing.T) {
	l := rtcore.NewLocals()
	prev := rtcore.New()
	l.RunWith(prev, func() (rtcore.Value, error) {
		func() {
			defer func() { recover() }()
			inner := rtcore.New()
			l.RunWith(inner, func() (rtcore.Value, error) {
				panic("boom")
			})
		}()

		if l.Current() != prev {
			t.Error("RunWith did not restore the previous context after a panic unwound through body")
		}
		return nil, nil
	})
}

func TestRunWithPropagatesResult(t *testing.T) {
	l := rtcore.NewLocals()
	ctx := rtcore.New()
	wantErr := errors.New("boom")
	v, err := l.RunWith(ctx, func() (rtcore.Value, error) { return 42, wantErr })
	if v != 42 {
		t.Errorf("v = %v, want 42", v)
	}
	if err != wantErr {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestPackageLevelRunWithUsesDefaultLocals(t *testing.T) {
	ctx := rtcore.New()
	rtcore.RunWith(ctx, func() (rtcore.Value, error) {
		if rtcore.Current() != ctx {
			t.Error("package-level Current() did not see the installed context")
		}
		return nil, nil
	})
	if rtcore.Current() != nil {
		t.Error("package-level Current() should revert to nil after RunWith returns")
	}
}
