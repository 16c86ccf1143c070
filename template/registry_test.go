package template

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/robfig/soymail/ast"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func compiler(calls *int32, name, text string) func() (*Template, error) {
	return func() (*Template, error) {
		atomic.AddInt32(calls, 1)
		return &Template{Name: name, Hash: Hash(text), Node: &ast.TemplateNode{Name: name, Text: text}}, nil
	}
}

func TestRegistryCaches(t *testing.T) {
	var r = NewRegistry()
	var calls int32
	var t1, err = r.Compile("a", "hello", compiler(&calls, "a", "hello"))
	if err != nil {
		t.Fatal(err)
	}
	t2, _ := r.Compile("a", "hello", compiler(&calls, "a", "hello"))
	if t1 != t2 {
		t.Errorf("expected the cached template to be returned")
	}
	if calls != 1 {
		t.Errorf("compiled %d times, expected 1", calls)
	}

	// New text is a new identity.
	t3, _ := r.Compile("a", "hello!", compiler(&calls, "a", "hello!"))
	if t3 == t1 || calls != 2 {
		t.Errorf("expected a recompile for changed text")
	}
	if _, ok := r.Template("a", "hello"); ok {
		t.Errorf("expected the edited text to replace the original entry")
	}
	if r.Len() != 1 {
		t.Errorf("expected one entry per name, got %d", r.Len())
	}

	r.Invalidate()
	if r.Len() != 0 {
		t.Errorf("expected empty registry after Invalidate, got %d", r.Len())
	}
	r.Compile("a", "hello", compiler(&calls, "a", "hello"))
	if calls != 3 {
		t.Errorf("expected recompile after Invalidate")
	}
}

func TestRegistryBoundedByName(t *testing.T) {
	var r = NewRegistry()
	var calls int32
	for i := 0; i < 100; i++ {
		var text = fmt.Sprintf("text %d", i)
		if _, err := r.Compile("inline", text, compiler(&calls, "inline", text)); err != nil {
			t.Fatal(err)
		}
	}
	if r.Len() != 1 {
		t.Errorf("expected one entry, got %d", r.Len())
	}
	if _, ok := r.Template("inline", "text 99"); !ok {
		t.Errorf("expected the latest text to be cached")
	}
}

func TestRegistryErrorsNotCached(t *testing.T) {
	var r = NewRegistry()
	var boom = errors.New("boom")
	_, err := r.Compile("a", "x", func() (*Template, error) { return nil, boom })
	if err != boom {
		t.Errorf("got %v, expected %v", err, boom)
	}
	if r.Len() != 0 {
		t.Errorf("failed compile was cached")
	}
}

func TestRegistryConcurrent(t *testing.T) {
	var r = NewRegistry()
	var calls int32
	var wg sync.WaitGroup
	var results = make([]*Template, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = r.Compile("a", "same", compiler(&calls, "a", "same"))
		}(i)
	}
	wg.Wait()
	for _, res := range results {
		if res == nil || res.Hash != Hash("same") {
			t.Fatalf("bad result %v", res)
		}
	}
	if r.Len() != 1 {
		t.Errorf("expected one entry, got %d", r.Len())
	}
}

func TestHash(t *testing.T) {
	if Hash("a") == Hash("b") {
		t.Error("distinct text hashed equal")
	}
	if len(Hash("")) != 64 {
		t.Errorf("unexpected hash length %d", len(Hash("")))
	}
}
