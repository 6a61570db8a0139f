package service

import (
	"sync"
	"testing"

	"github.com/Microck/bansho/internal/domain/policy"
)

func testPolicy(t *testing.T) policy.Policy {
	t.Helper()
	pol := policy.Policy{
		Roles: policy.RolesPolicy{
			User: policy.RoleToolPolicy{Allow: []string{"echo", "calculator"}},
		},
	}
	if err := pol.Normalize(); err != nil {
		t.Fatalf("normalize policy: %v", err)
	}
	return pol
}

func TestCachedAuthorizerMatchesDirectEvaluation(t *testing.T) {
	pol := testPolicy(t)
	authorizer := NewCachedAuthorizer(pol, 0)

	pairs := []struct{ role, tool string }{
		{"user", "echo"},
		{"user", "rm_rf"},
		{"admin", "anything"},
		{"readonly", "echo"},
		{"intruder", "echo"},
		{"user", ""},
	}
	for _, pair := range pairs {
		got := authorizer.Authorize(pair.role, pair.tool)
		want := policy.Authorize(pol, pair.role, pair.tool)
		if got != want {
			t.Errorf("Authorize(%q, %q) = %+v, want %+v", pair.role, pair.tool, got, want)
		}
		// Second call is served from the cache and must not drift.
		if again := authorizer.Authorize(pair.role, pair.tool); again != want {
			t.Errorf("cached Authorize(%q, %q) = %+v, want %+v", pair.role, pair.tool, again, want)
		}
	}
}

func TestCachedAuthorizerKeySeparation(t *testing.T) {
	pol := testPolicy(t)
	authorizer := NewCachedAuthorizer(pol, 0)

	// "use"+"recho" and "user"+"echo" concatenate identically; the
	// separator in the hash must keep them apart.
	allowed := authorizer.Authorize("user", "echo")
	denied := authorizer.Authorize("use", "recho")

	if !allowed.Allowed {
		t.Error("user/echo should be allowed")
	}
	if denied.Allowed {
		t.Error("use/recho should be denied")
	}
}

func TestCachedAuthorizerBoundsSize(t *testing.T) {
	pol := testPolicy(t)
	authorizer := NewCachedAuthorizer(pol, 8)

	for i := 0; i < 50; i++ {
		authorizer.Authorize("user", toolName(i))
	}

	if size := authorizer.Size(); size != 8 {
		t.Errorf("Size() = %d, want 8", size)
	}
}

func TestCachedAuthorizerEvictsLeastRecentlyUsed(t *testing.T) {
	pol := testPolicy(t)
	authorizer := NewCachedAuthorizer(pol, 2)

	authorizer.Authorize("user", "a")
	authorizer.Authorize("user", "b")
	authorizer.Authorize("user", "a") // promote a
	authorizer.Authorize("user", "c") // evicts b

	authorizer.mu.Lock()
	_, hasA := authorizer.entries[authzCacheKey("user", "a")]
	_, hasB := authorizer.entries[authzCacheKey("user", "b")]
	_, hasC := authorizer.entries[authzCacheKey("user", "c")]
	authorizer.mu.Unlock()

	if !hasA || !hasC {
		t.Error("promoted and newest entries should survive eviction")
	}
	if hasB {
		t.Error("least recently used entry should be evicted")
	}
}

func TestCachedAuthorizerConcurrentAccess(t *testing.T) {
	pol := testPolicy(t)
	authorizer := NewCachedAuthorizer(pol, 16)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				decision := authorizer.Authorize("user", toolName((seed+i)%20))
				if decision.Role != "user" {
					t.Errorf("role = %q, want user", decision.Role)
					return
				}
			}
		}(g)
	}
	wg.Wait()
}

func toolName(i int) string {
	return "tool_" + string(rune('a'+i%26)) + string(rune('a'+(i/26)%26))
}
