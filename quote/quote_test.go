package quote

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkReal(price int64) Real {
	return Real{Header: Header{ID: "r", Side: SideBid, Price: decimal.NewFromInt(price)}, User: "A"}
}

func mkSyn(price int64) Synthetic {
	return Synthetic{Header: Header{ID: "s", Side: SideBid, Price: decimal.NewFromInt(price)}, Op: OpSub}
}

func TestParseSide(t *testing.T) {
	s, err := ParseSide(" BID ")
	require.NoError(t, err)
	assert.Equal(t, SideBid, s)
	s, err = ParseSide("ask")
	require.NoError(t, err)
	assert.Equal(t, SideAsk, s)
	assert.Equal(t, SideBid, s.Opposite())
	_, err = ParseSide("buy")
	assert.Error(t, err)
}

func TestBestPrefersRealOnTie(t *testing.T) {
	got := Best(SideBid, mkReal(100), mkSyn(100))
	assert.False(t, got.IsSynthetic())

	got = Best(SideAsk, mkReal(100), mkSyn(100))
	assert.False(t, got.IsSynthetic())
}

func TestBestByPrice(t *testing.T) {
	cases := []struct {
		name    string
		side    Side
		resting Quote
		syn     Quote
		want    string
	}{
		{name: "买方合成更高", side: SideBid, resting: mkReal(99), syn: mkSyn(100), want: "100"},
		{name: "买方实盘更高", side: SideBid, resting: mkReal(101), syn: mkSyn(100), want: "101"},
		{name: "卖方合成更低", side: SideAsk, resting: mkReal(101), syn: mkSyn(100), want: "100"},
		{name: "卖方实盘更低", side: SideAsk, resting: mkReal(99), syn: mkSyn(100), want: "99"},
		{name: "只有实盘", side: SideBid, resting: mkReal(99), want: "99"},
		{name: "只有合成", side: SideAsk, syn: mkSyn(7), want: "7"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Best(tc.side, tc.resting, tc.syn)
			require.NotNil(t, got)
			assert.Equal(t, tc.want, got.Head().Price.String())
		})
	}
	assert.Nil(t, Best(SideBid, nil, nil))
}

func TestCrossed(t *testing.T) {
	assert.True(t, Crossed(mkReal(100), mkReal(100)))
	assert.True(t, Crossed(mkReal(101), mkSyn(100)))
	assert.False(t, Crossed(mkReal(99), mkReal(100)))
	assert.False(t, Crossed(nil, mkReal(100)))
	assert.False(t, Crossed(mkReal(100), nil))
}

func TestStringShowsProvenance(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s := Synthetic{
		Header: Header{ID: "0123456789abcdef", Time: at, Instrument: "3x5", Side: SideAsk, Price: decimal.NewFromInt(2)},
		Op:     OpSub,
		Left:   Leg{Instrument: "5YR", Price: decimal.NewFromInt(101)},
		Right:  Leg{Instrument: "3YR", Price: decimal.NewFromInt(99)},
	}
	out := s.String()
	assert.True(t, strings.HasPrefix(out, "(01234567,3x5,ask,2,"))
	assert.Contains(t, out, "syn((5YR, 101) - (3YR, 99))")

	r := Real{Header: Header{ID: "abc", Time: at, Instrument: "3YR", Side: SideBid, Price: decimal.NewFromInt(99)}, User: "A"}
	assert.Contains(t, r.String(), "(abc,3YR,bid,99,A,")
	assert.True(t, strings.HasSuffix(r.String(), ",real)"))
}

func TestUUIDStamper(t *testing.T) {
	id1, at := UUIDStamper{}.Stamp()
	id2, _ := UUIDStamper{}.Stamp()
	assert.Len(t, id1, 36)
	assert.NotEqual(t, id1, id2)
	assert.False(t, at.IsZero())
}
