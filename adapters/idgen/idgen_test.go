package idgen_test

import (
	"regexp"
	"testing"

	"github.com/replygate/replygate/adapters/idgen"
)

func TestUUID_New(t *testing.T) {
	g := idgen.UUID{}

	id := g.New()
	uuidRegex := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	if !uuidRegex.MatchString(id) {
		t.Errorf("ID %s doesn't match UUID v4 format", id)
	}

	if g.New() == id {
		t.Error("consecutive IDs must differ")
	}
}

func TestSequential_New(t *testing.T) {
	g := idgen.NewSequential("ev_")

	for i, want := range []string{"ev_1", "ev_2", "ev_3"} {
		if got := g.New(); got != want {
			t.Errorf("call %d = %s, want %s", i+1, got, want)
		}
	}
}
