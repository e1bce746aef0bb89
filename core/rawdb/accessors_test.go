package rawdb

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Thorstarter/thorstarter-terra/core/types"
)

func TestSaleStateRoundTrip(t *testing.T) {
	db := NewMemoryDB()
	if _, err := ReadSaleState(db); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ReadSaleState on empty db: %v", err)
	}
	st := &types.SaleState{
		Owner:       "owner",
		Config:      types.SaleConfig{Token: "token", StartTime: 10, EndTime: 100, Divisor: types.DivisorTotal},
		TotalUsers:  2,
		TotalAmount: types.NewAmount(60_000_000),
	}
	if err := WriteSaleState(db, st); err != nil {
		t.Fatal(err)
	}
	got, err := ReadSaleState(db)
	if err != nil {
		t.Fatal(err)
	}
	if got.Owner != "owner" || got.Config.EndTime != 100 || got.TotalUsers != 2 || got.Config.Divisor != types.DivisorTotal {
		t.Fatalf("ReadSaleState = %+v", got)
	}
	if ok, _ := HasSaleState(db); !ok {
		t.Fatal("HasSaleState = false")
	}
}

func TestUserStateRoundTrip(t *testing.T) {
	db := NewMemoryDB()
	st, ok, err := ReadUserState(db, "addr0001")
	if err != nil || ok || !st.Amount.IsZero() {
		t.Fatalf("missing user: %+v %v %v", st, ok, err)
	}
	in := types.UserState{Amount: types.NewAmount(50_000_000), Claimed: types.NewAmount(1)}
	if err := WriteUserState(db, "addr0001", in); err != nil {
		t.Fatal(err)
	}
	st, ok, err = ReadUserState(db, "addr0001")
	if err != nil || !ok {
		t.Fatalf("ReadUserState: %v %v", ok, err)
	}
	if st.Amount.String() != "50000000" || st.Claimed.String() != "1" {
		t.Fatalf("ReadUserState = %+v", st)
	}
}

func TestIterateUsersPaging(t *testing.T) {
	db := NewMemoryDB()
	for i := 1; i <= 5; i++ {
		WriteUserState(db, fmt.Sprintf("addr%04d", i), types.UserState{Amount: types.NewAmount(uint64(i))})
	}
	WriteNativeBalance(db, "uusd", "addr0001", types.NewAmount(9))

	page, err := IterateUsers(db, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].Address != "addr0001" || page[1].Address != "addr0002" {
		t.Fatalf("first page = %+v", page)
	}
	page, _ = IterateUsers(db, page[1].Address, 2)
	if len(page) != 2 || page[0].Address != "addr0003" {
		t.Fatalf("second page = %+v", page)
	}
	page, _ = IterateUsers(db, "addr0005", 2)
	if len(page) != 0 {
		t.Fatalf("past the end = %+v", page)
	}
	all, _ := IterateUsers(db, "", 0)
	if len(all) != 5 || all[4].State.Amount.String() != "5" {
		t.Fatalf("all = %+v", all)
	}
}

func TestBalances(t *testing.T) {
	db := NewMemoryDB()
	if b, err := ReadNativeBalance(db, "uusd", "a"); err != nil || !b.IsZero() {
		t.Fatalf("unset balance = %s, %v", b, err)
	}
	WriteNativeBalance(db, "uusd", "a", types.NewAmount(10))
	WriteTokenBalance(db, "uusd", "a", types.NewAmount(20))
	if b, _ := ReadNativeBalance(db, "uusd", "a"); b.String() != "10" {
		t.Fatalf("native = %s", b)
	}
	if b, _ := ReadTokenBalance(db, "uusd", "a"); b.String() != "20" {
		t.Fatalf("token = %s", b)
	}
	// Denom length prefixing keeps ("uus","da") apart from ("uusd","a").
	if b, _ := ReadNativeBalance(db, "uus", "da"); !b.IsZero() {
		t.Fatal("scoped keys collided")
	}
	WriteNativeBalance(db, "uusd", "a", types.Amount{})
	if ok, _ := db.Has(nativeBalanceKey("uusd", "a")); ok {
		t.Fatal("zero balance should be deleted")
	}

	// A 256-byte denom must not wrap its length to zero.
	long := strings.Repeat("d", 256)
	WriteNativeBalance(db, long, "a", types.NewAmount(7))
	if b, _ := ReadNativeBalance(db, "", long+"a"); !b.IsZero() {
		t.Fatal("long denom collided with empty denom")
	}
	if b, _ := ReadNativeBalance(db, long, "a"); b.String() != "7" {
		t.Fatalf("long denom balance = %s", b)
	}
	if k := nativeBalanceKey("uusd", "a"); !bytes.Equal(k, []byte("b\x04uusda")) {
		t.Fatalf("short denom key = %q", k)
	}
}

func TestNonces(t *testing.T) {
	db := NewMemoryDB()
	if n, err := ReadNonce(db, "a"); err != nil || n != 0 {
		t.Fatalf("unset nonce = %d, %v", n, err)
	}
	if err := WriteNonce(db, "a", 3); err != nil {
		t.Fatal(err)
	}
	if n, _ := ReadNonce(db, "a"); n != 3 {
		t.Fatalf("nonce = %d", n)
	}
	if n, _ := ReadNonce(db, "ab"); n != 0 {
		t.Fatalf("nonce of other address = %d", n)
	}
	db.Put(nonceKey("bad"), []byte{1})
	if _, err := ReadNonce(db, "bad"); err == nil {
		t.Fatal("short nonce value accepted")
	}
}

func TestEventLog(t *testing.T) {
	db := NewMemoryDB()
	for i := 1; i <= 3; i++ {
		seq, err := AppendEvent(db, []byte(fmt.Sprintf("ev%d", i)))
		if err != nil || seq != uint64(i) {
			t.Fatalf("AppendEvent = %d, %v", seq, err)
		}
	}
	head, _ := ReadEventHead(db)
	if head != 3 {
		t.Fatalf("head = %d", head)
	}
	evs, err := ReadEvents(db, 2, 0)
	if err != nil || len(evs) != 2 || string(evs[0]) != "ev2" {
		t.Fatalf("ReadEvents = %q, %v", evs, err)
	}
	if got, _ := ReadEvent(db, 1); string(got) != "ev1" {
		t.Fatalf("ReadEvent(1) = %q", got)
	}
}
