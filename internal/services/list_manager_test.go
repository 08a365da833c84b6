package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"aurelia/internal/domain"
	"aurelia/internal/repos"
	"aurelia/internal/services"
)

type managerEnv struct {
	mgr    *services.ListManager
	mr     *miniredis.Miniredis
	local  *repos.LocalStore
	remote *repos.RemoteStore
	events []domain.RefreshEvent
}

func newManagerEnv(t *testing.T, kind domain.ListKind) *managerEnv {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	env := &managerEnv{
		mr:     mr,
		local:  repos.NewLocalStore(db),
		remote: repos.NewRemoteStore(client, repos.NewFallbackCache(time.Minute), time.Second),
	}
	env.mgr = &services.ListManager{
		Kind:    kind,
		Local:   env.local,
		Remote:  env.remote,
		Refresh: func(e domain.RefreshEvent) { env.events = append(env.events, e) },
	}
	return env
}

func anonSC() domain.SessionContext {
	return domain.SessionContext{SessionID: "sid-1"}
}

func userSC() domain.SessionContext {
	return domain.SessionContext{SessionID: "sid-1", UserID: "u-maya"}
}

func TestListManager_AnonymousAddAccumulates(t *testing.T) {
	env := newManagerEnv(t, domain.KindCart)
	ctx := context.Background()

	if _, err := env.mgr.Add(ctx, anonSC(), li("ring-aurora", 0), 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	res, err := env.mgr.Add(ctx, anonSC(), li("ring-aurora", 0), 3)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].Quantity != 5 {
		t.Fatalf("want one entry at quantity 5, got %+v", res.Items)
	}

	// the anonymous snapshot is persisted locally
	stored, err := env.local.Items("sid-1", domain.KindCart)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].Quantity != 5 {
		t.Fatalf("local store mismatch: %+v", stored)
	}
}

func TestListManager_AddRejectsMissingID(t *testing.T) {
	env := newManagerEnv(t, domain.KindCart)
	_, err := env.mgr.Add(context.Background(), anonSC(), domain.LineItem{Name: "no id"}, 1)
	if !errors.Is(err, domain.ErrInvalidItem) {
		t.Fatalf("want ErrInvalidItem, got %v", err)
	}
}

func TestListManager_BackendSelectedPerCall(t *testing.T) {
	env := newManagerEnv(t, domain.KindCart)
	ctx := context.Background()

	if _, err := env.mgr.Add(ctx, anonSC(), li("local-item", 0), 1); err != nil {
		t.Fatal(err)
	}
	if _, err := env.mgr.Add(ctx, userSC(), li("remote-item", 0), 1); err != nil {
		t.Fatal(err)
	}

	anonRes, err := env.mgr.Items(ctx, anonSC())
	if err != nil {
		t.Fatal(err)
	}
	if len(anonRes.Items) != 1 || anonRes.Items[0].ID != "local-item" {
		t.Fatalf("anonymous view leaked: %+v", anonRes.Items)
	}

	userRes, err := env.mgr.Items(ctx, userSC())
	if err != nil {
		t.Fatal(err)
	}
	if len(userRes.Items) != 1 || userRes.Items[0].ID != "remote-item" {
		t.Fatalf("account view leaked: %+v", userRes.Items)
	}

	// the authenticated write must not have touched the local snapshot
	stored, _ := env.local.Items("sid-1", domain.KindCart)
	if len(stored) != 1 || stored[0].ID != "local-item" {
		t.Fatalf("local snapshot changed by account write: %+v", stored)
	}
}

func TestListManager_UpdateQuantityClampsToOne(t *testing.T) {
	env := newManagerEnv(t, domain.KindCart)
	ctx := context.Background()

	if _, err := env.mgr.Add(ctx, anonSC(), li("a", 0), 4); err != nil {
		t.Fatal(err)
	}
	res, err := env.mgr.UpdateQuantity(ctx, anonSC(), "a", 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Items[0].Quantity != 1 {
		t.Fatalf("want clamp to 1, got %d", res.Items[0].Quantity)
	}

	// absent id is a no-op, not an error
	res, err = env.mgr.UpdateQuantity(ctx, anonSC(), "missing", 9)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 1 || res.Items[0].ID != "a" {
		t.Fatalf("absent id changed the list: %+v", res.Items)
	}
}

func TestListManager_DecrementStopsAtOne(t *testing.T) {
	env := newManagerEnv(t, domain.KindCart)
	ctx := context.Background()

	if _, err := env.mgr.Add(ctx, anonSC(), li("a", 0), 2); err != nil {
		t.Fatal(err)
	}
	res, err := env.mgr.Decrement(ctx, anonSC(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if res.Items[0].Quantity != 1 {
		t.Fatalf("want 1 after decrement, got %d", res.Items[0].Quantity)
	}

	res, err = env.mgr.Decrement(ctx, anonSC(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 1 || res.Items[0].Quantity != 1 {
		t.Fatalf("decrement at 1 must hold the floor, got %+v", res.Items)
	}
}

func TestListManager_RemoveAbsentIsNoop(t *testing.T) {
	env := newManagerEnv(t, domain.KindCart)
	ctx := context.Background()

	if _, err := env.mgr.Add(ctx, anonSC(), li("a", 0), 1); err != nil {
		t.Fatal(err)
	}
	res, err := env.mgr.Remove(ctx, anonSC(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("absent remove changed the list: %+v", res.Items)
	}

	res, err = env.mgr.Remove(ctx, anonSC(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 0 {
		t.Fatalf("remove failed: %+v", res.Items)
	}
}

func TestListManager_CartAddAsksForPanel(t *testing.T) {
	cart := newManagerEnv(t, domain.KindCart)
	wish := newManagerEnv(t, domain.KindWishlist)
	ctx := context.Background()

	if _, err := cart.mgr.Add(ctx, anonSC(), li("a", 0), 1); err != nil {
		t.Fatal(err)
	}
	if len(cart.events) != 1 || !cart.events[0].OpenPanel || cart.events[0].List != domain.KindCart {
		t.Fatalf("cart add event mismatch: %+v", cart.events)
	}

	if _, err := wish.mgr.Add(ctx, anonSC(), li("a", 0), 1); err != nil {
		t.Fatal(err)
	}
	if len(wish.events) != 1 || wish.events[0].OpenPanel {
		t.Fatalf("wishlist add must not open a panel: %+v", wish.events)
	}
}

func TestListManager_SequentialWritesReadFreshVersions(t *testing.T) {
	env := newManagerEnv(t, domain.KindCart)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		if _, err := env.mgr.Add(ctx, userSC(), li(id, 0), 1); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	doc, err := env.remote.Fetch(ctx, userSC(), domain.KindCart)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Version != 3 || len(doc.Items) != 3 {
		t.Fatalf("want version 3 with 3 items, got v%d %+v", doc.Version, doc.Items)
	}
}

func TestListManager_LoginMergesAndClearsLocal(t *testing.T) {
	env := newManagerEnv(t, domain.KindCart)
	ctx := context.Background()

	// anonymous browsing
	if _, err := env.mgr.Add(ctx, anonSC(), li("a", 0), 2); err != nil {
		t.Fatal(err)
	}
	if _, err := env.mgr.Add(ctx, anonSC(), li("b", 0), 1); err != nil {
		t.Fatal(err)
	}
	// account list from an earlier device
	seed := []domain.LineItem{li("b", 3), li("c", 1)}
	if _, err := env.remote.Save(ctx, userSC(), domain.KindCart, seed, 0); err != nil {
		t.Fatal(err)
	}

	res, err := env.mgr.SyncOnLogin(ctx, userSC())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	wantOrder := []string{"a", "b", "c"}
	if len(res.Items) != 3 {
		t.Fatalf("want 3 merged items, got %+v", res.Items)
	}
	for i, id := range wantOrder {
		if res.Items[i].ID != id {
			t.Fatalf("position %d: want %s, got %s", i, id, res.Items[i].ID)
		}
	}
	if res.Items[1].Quantity != 3 {
		t.Fatalf("duplicate should take max quantity 3, got %d", res.Items[1].Quantity)
	}

	// local snapshot released
	stored, _ := env.local.Items("sid-1", domain.KindCart)
	if len(stored) != 0 {
		t.Fatalf("local snapshot should be cleared, got %+v", stored)
	}
	// merged list persisted remotely under a bumped version
	doc, err := env.remote.Fetch(ctx, userSC(), domain.KindCart)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Version != 2 || len(doc.Items) != 3 {
		t.Fatalf("remote doc mismatch: v%d %+v", doc.Version, doc.Items)
	}
}

func TestListManager_LoginWithEmptyLocalAdoptsRemoteWithoutWriting(t *testing.T) {
	env := newManagerEnv(t, domain.KindCart)
	ctx := context.Background()

	seed := []domain.LineItem{li("c", 4)}
	if _, err := env.remote.Save(ctx, userSC(), domain.KindCart, seed, 0); err != nil {
		t.Fatal(err)
	}

	res, err := env.mgr.SyncOnLogin(ctx, userSC())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].ID != "c" || res.Items[0].Quantity != 4 {
		t.Fatalf("want remote adopted as-is, got %+v", res.Items)
	}

	// nothing was written back
	doc, err := env.remote.Fetch(ctx, userSC(), domain.KindCart)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Version != 1 {
		t.Fatalf("empty local login must not write, version went to %d", doc.Version)
	}
}

func TestListManager_LoginRequiresUser(t *testing.T) {
	env := newManagerEnv(t, domain.KindCart)
	_, err := env.mgr.SyncOnLogin(context.Background(), anonSC())
	if !errors.Is(err, domain.ErrNotLoggedIn) {
		t.Fatalf("want ErrNotLoggedIn, got %v", err)
	}
}

func TestListManager_LogoutFallsBackToLocalAndKeepsRemote(t *testing.T) {
	env := newManagerEnv(t, domain.KindCart)
	ctx := context.Background()

	// local snapshot from before this account existed on the device
	if err := env.local.SaveItems("sid-1", domain.KindCart, []domain.LineItem{li("x", 2)}); err != nil {
		t.Fatal(err)
	}
	// account list written while logged in
	if _, err := env.mgr.Add(ctx, userSC(), li("y", 0), 1); err != nil {
		t.Fatal(err)
	}

	res, err := env.mgr.SyncOnLogout(ctx, anonSC())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 1 || res.Items[0].ID != "x" {
		t.Fatalf("logout should surface the local snapshot, got %+v", res.Items)
	}

	doc, err := env.remote.Fetch(ctx, userSC(), domain.KindCart)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Items) != 1 || doc.Items[0].ID != "y" {
		t.Fatalf("logout must leave the account list untouched: %+v", doc.Items)
	}
}

func TestListManager_OfflineMutationDegradesGracefully(t *testing.T) {
	env := newManagerEnv(t, domain.KindCart)
	ctx := context.Background()

	if _, err := env.mgr.Add(ctx, userSC(), li("a", 0), 1); err != nil {
		t.Fatal(err)
	}
	env.mr.Close()

	res, err := env.mgr.Add(ctx, userSC(), li("b", 0), 1)
	if err != nil {
		t.Fatalf("offline add should degrade, not fail: %v", err)
	}
	if !res.Offline {
		t.Fatal("want Offline flag set")
	}
	ids := []string{}
	for _, it := range res.Items {
		ids = append(ids, it.ID)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("want cached items plus the new one, got %v", ids)
	}

	// reads keep serving the cached copy during the outage
	view, err := env.mgr.Items(ctx, userSC())
	if err != nil {
		t.Fatal(err)
	}
	if !view.Offline || len(view.Items) != 2 {
		t.Fatalf("offline read mismatch: offline=%v items=%+v", view.Offline, view.Items)
	}
}
