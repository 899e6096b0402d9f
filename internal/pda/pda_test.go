package pda

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func testOwner(tag string) Address {
	return Address(sha256.Sum256([]byte(tag)))
}

func TestDeriveIsDeterministic(t *testing.T) {
	owner := testOwner("alice")

	first, firstBump := Derive(NamespaceUserState, owner.Bytes())
	second, secondBump := Derive(NamespaceUserState, owner.Bytes())

	require.Equal(t, first, second)
	require.Equal(t, firstBump, secondBump)
	require.False(t, first.IsZero())
}

func TestDeriveDistinctNamespaces(t *testing.T) {
	owner := testOwner("alice")

	seen := map[Address]string{}
	for _, ns := range []string{
		NamespaceUserState,
		NamespaceUserIncenseState,
		NamespaceUserDonationState,
		NamespaceMedalNft,
		NamespaceWishTower,
	} {
		addr, _ := Derive(ns, owner.Bytes())
		if prev, ok := seen[addr]; ok {
			t.Fatalf("namespace %q collides with %q", ns, prev)
		}
		seen[addr] = ns
	}
}

func TestDeriveDistinctOwners(t *testing.T) {
	a := UserStateAddress(testOwner("alice"))
	b := UserStateAddress(testOwner("bob"))
	require.NotEqual(t, a, b)
}

func TestSequencePartsProduceDistinctAddresses(t *testing.T) {
	owner := testOwner("alice")

	seen := map[Address]uint64{}
	for seq := uint64(0); seq < 50; seq++ {
		addr := LotteryRecordAddress(owner, seq)
		if prev, ok := seen[addr]; ok {
			t.Fatalf("sequence %d collides with %d", seq, prev)
		}
		seen[addr] = seq
	}
}

func TestDerivedAddressIsOffCurve(t *testing.T) {
	addr, _ := Derive(NamespaceTempleConfig)
	require.False(t, onCurve(addr))
}

func TestBase58RoundTrip(t *testing.T) {
	addr := TempleConfigAddress()

	parsed, err := FromBase58(addr.String())
	require.NoError(t, err)
	require.Equal(t, addr, parsed)

	_, err = FromBase58("notbase58!!!")
	require.Error(t, err)
}

func TestTypePartDistinguishesIncenseTypes(t *testing.T) {
	require.NotEqual(t, IncenseTypeAddress(1), IncenseTypeAddress(2))
	require.Equal(t, IncenseTypeAddress(1), IncenseTypeAddress(1))
}
