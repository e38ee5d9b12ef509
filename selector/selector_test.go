package selector

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/lineage/token"
	"github.com/teranos/lineage/walker"
)

const host = "genomcs.lbl.gov"

func tok(s string) token.Token { return token.MustParse(s) }

func cand(t string, link string, path ...string) walker.Candidate {
	p := make([]token.Token, 0, len(path)+1)
	for _, s := range path {
		p = append(p, tok(s))
	}
	p = append(p, tok(t))
	return walker.Candidate{
		Token:    tok(t),
		Artifact: walker.Artifact{Link: link},
		Depth:    len(p) - 1,
		Path:     p,
	}
}

func fastq(name string) string {
	return "https://" + host + "/enigma-data/" + name
}

func tokensOf(sel []Selected) []string {
	out := make([]string, len(sel))
	for i, s := range sel {
		out[i] = s.Token.String()
	}
	return out
}

func newSelector(t *testing.T) *Selector {
	return New(LinkPredicate{Host: host}.Match, zaptest.NewLogger(t).Sugar())
}

func TestSelect_PairedReads(t *testing.T) {
	got := newSelector(t).Select([]walker.Candidate{
		cand("reads:100", fastq("FW305_R1.fastq"), "genome:9"),
		cand("reads:101", fastq("FW305_R2.fastq"), "genome:9"),
	})
	require.Len(t, got, 2)
	assert.Equal(t, []string{"reads:100", "reads:101"}, tokensOf(got))
	assert.Equal(t, "FW305", got[0].Group)
	assert.Equal(t, got[0].Group, got[1].Group)
	assert.Equal(t, MateForward, got[0].Mate)
	assert.Equal(t, MateReverse, got[1].Mate)
	assert.True(t, got[0].Paired())
}

func TestSelect_NearerCopyWins(t *testing.T) {
	near := cand("reads:200", fastq("x_R1.fastq"), "genome:1", "assembly:1")
	near.ViaTransfer = true
	far := cand("reads:199", fastq("x_R1.fastq"), "genome:1", "assembly:1", "reads:200")

	got := newSelector(t).Select([]walker.Candidate{near, far})
	assert.Equal(t, []string{"reads:200"}, tokensOf(got))

	// Without the transfer flag minimality alone still keeps the nearer one.
	near.ViaTransfer = false
	got = newSelector(t).Select([]walker.Candidate{near, far})
	assert.Equal(t, []string{"reads:200"}, tokensOf(got))
}

func TestSelect_NonDerivedPreferred(t *testing.T) {
	trimmed := cand("reads:2", fastq("s_trimmed.fastq"), "genome:1", "assembly:1")
	trimmed.ViaLossyTransform = true
	raw := cand("reads:1", fastq("s.fastq"), "genome:1", "assembly:1", "reads:2")

	got := newSelector(t).Select([]walker.Candidate{trimmed, raw})
	assert.Equal(t, []string{"reads:1"}, tokensOf(got))

	// Only derived candidates: the step must not empty the set.
	got = newSelector(t).Select([]walker.Candidate{trimmed})
	assert.Equal(t, []string{"reads:2"}, tokensOf(got))
}

func TestSelect_LinkValidity(t *testing.T) {
	got := newSelector(t).Select([]walker.Candidate{
		cand("reads:1", "https://elsewhere.org/a.fastq"),
		cand("reads:2", fastq("a.bam")),
		cand("reads:3", ""),
		cand("reads:4", fastq("a.fq.gz")),
	})
	assert.Equal(t, []string{"reads:4"}, tokensOf(got))
}

func TestSelect_EmptyIsNotAnError(t *testing.T) {
	got, report := newSelector(t).Reduce(nil)
	assert.Empty(t, got)
	assert.Equal(t, 0, report.Input)
	require.Len(t, report.Steps, 6)

	var zero Selector
	assert.Empty(t, zero.Select(nil))
}

func TestSelect_Dedupe(t *testing.T) {
	a := cand("reads:1", fastq("a.fastq"), "genome:1")
	b := cand("reads:1", fastq("a.fastq"), "genome:1", "assembly:1")
	got := newSelector(t).Select([]walker.Candidate{a, b})
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Depth)
}

func TestPreferTransfer_FallsBack(t *testing.T) {
	set := []walker.Candidate{cand("reads:1", ""), cand("reads:2", "")}
	assert.Equal(t, set, PreferTransfer(set))
	set[1].ViaTransfer = true
	assert.Equal(t, []walker.Candidate{set[1]}, PreferTransfer(set))
}

func TestPair(t *testing.T) {
	named := func(id, name string) walker.Candidate {
		c := cand(id, "")
		c.Artifact.Name = name
		return c
	}

	t.Run("identified pair drops singletons", func(t *testing.T) {
		got := Pair([]walker.Candidate{
			named("reads:1", "lone"),
			named("reads:2", "S1_rev"),
			named("reads:3", "S1_fwd"),
		})
		assert.Equal(t, []string{"reads:3", "reads:2"}, tokensOf(got))
		assert.Equal(t, "S1", got[0].Group)
	})

	t.Run("no identified pair keeps everything", func(t *testing.T) {
		got := Pair([]walker.Candidate{
			named("reads:1", "a"),
			named("reads:2", "b"),
		})
		assert.Equal(t, []string{"reads:1", "reads:2"}, tokensOf(got))
		assert.Empty(t, got[0].Mate)
	})

	t.Run("positional fallback", func(t *testing.T) {
		got := Pair([]walker.Candidate{
			named("reads:1", "S2_paired"),
			named("reads:2", "S2_unpaired"),
			named("reads:3", "S9"),
		})
		require.Len(t, got, 3)
		assert.Equal(t, MateForward, got[0].Mate)
		assert.Equal(t, tok("reads:1"), got[0].Token)
		assert.Equal(t, MateReverse, got[1].Mate)
		assert.Equal(t, tok("reads:2"), got[1].Token)
		assert.Empty(t, got[2].Mate)
	})

	t.Run("only reverse marked", func(t *testing.T) {
		got := Pair([]walker.Candidate{
			named("reads:1", "S3_R2"),
			named("reads:2", "S3_paired"),
		})
		require.Len(t, got, 2)
		assert.Equal(t, tok("reads:2"), got[0].Token)
		assert.Equal(t, tok("reads:1"), got[1].Token)
	})

	t.Run("lane numbers are not mate labels", func(t *testing.T) {
		// "_r12" is not a forward marker, so the pair is positional and
		// the singleton survives.
		got := Pair([]walker.Candidate{
			named("reads:1", "S4_paired_r2"),
			named("reads:2", "S4_paired_r12"),
			named("reads:3", "lone"),
		})
		assert.Equal(t, []string{"reads:2", "reads:1", "reads:3"}, tokensOf(got))
		assert.Equal(t, "S4", got[0].Group)
		assert.Equal(t, MateForward, got[0].Mate)
	})

	t.Run("name from link", func(t *testing.T) {
		got := Pair([]walker.Candidate{
			cand("reads:1", fastq("lib_R1.fastq.gz")),
			cand("reads:2", fastq("lib_R2.fastq.gz")),
		})
		require.Len(t, got, 2)
		assert.Equal(t, "lib", got[0].Group)
	})
}

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		"FW305_R1.fastq":       "FW305",
		"FW305-r2":             "FW305",
		"GW456_forward_run2":   "GW456",
		"GW456-Reverse":        "GW456",
		"x_unpaired.fq":        "x",
		"plain.fastq":          "plain.fastq",
		"sample-rev_R1.fastq":  "sample",
		"no_marker_here.fastq": "no_marker_here.fastq",
		"run_R10.fastq":        "run_R10.fastq",
		"S1_R1_L001.fastq.gz":  "S1",
	}
	for in, want := range tests {
		assert.Equal(t, want, BaseName(in), in)
	}
}

func TestHasMarker(t *testing.T) {
	assert.True(t, hasMarker("S1_R1.fastq.gz", forwardMarkers))
	assert.True(t, hasMarker("S1_R1", forwardMarkers))
	assert.True(t, hasMarker("S1_R10_R1.fastq", forwardMarkers))
	assert.False(t, hasMarker("S1_R10.fastq", forwardMarkers))
	assert.False(t, hasMarker("S1_R12.fastq", forwardMarkers))
	assert.False(t, hasMarker("S1_revision.fastq", reverseMarkers))
}

func TestLinkPredicate(t *testing.T) {
	p := LinkPredicate{Host: "GENOMCS.lbl.gov"}
	assert.True(t, p.Match(walker.Artifact{Link: fastq("a.FASTQ.gz")}))
	assert.False(t, p.Match(walker.Artifact{}))
	assert.True(t, LinkPredicate{Extensions: []string{".bam"}}.Match(walker.Artifact{Link: "s3://x/y.bam"}))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "n", DisplayName(walker.Artifact{Name: "n", Link: fastq("f.fastq")}))
	assert.Equal(t, "f.fastq", DisplayName(walker.Artifact{Link: fastq("f.fastq")}))
	assert.Equal(t, "f.fq", DisplayName(walker.Artifact{Link: "/data/f.fq"}))
	assert.Empty(t, DisplayName(walker.Artifact{}))
}

// randomCandidates builds a chain-shaped candidate set where later
// candidates may sit behind earlier ones.
func randomCandidates(r *rand.Rand) []walker.Candidate {
	n := r.Intn(8)
	var out []walker.Candidate
	for i := 0; i < n; i++ {
		path := []string{"genome:1"}
		for j := 0; j < i; j++ {
			if r.Intn(3) == 0 {
				path = append(path, fmt.Sprintf("reads:%d", j))
			}
		}
		id := fmt.Sprintf("reads:%d", i)
		if r.Intn(5) == 0 && i > 0 {
			id = fmt.Sprintf("reads:%d", r.Intn(i))
		}
		link := fastq(fmt.Sprintf("s%d_R%d.fastq", r.Intn(3), 1+r.Intn(2)))
		if r.Intn(4) == 0 {
			link = "https://elsewhere/" + link
		}
		c := cand(id, link, path...)
		c.ViaTransfer = r.Intn(3) == 0
		c.ViaLossyTransform = r.Intn(3) == 0
		out = append(out, c)
	}
	return out
}

func TestReduce_Monotone(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	s := newSelector(t)
	for i := 0; i < 500; i++ {
		set := randomCandidates(r)
		out, report := s.Reduce(set)
		prev := report.Input
		for _, step := range report.Steps {
			assert.LessOrEqual(t, step.Count, prev, step.Step)
			prev = step.Count
		}
		assert.Equal(t, len(out), prev)
	}
}

func TestMinimal_NoSurvivorBehindAnother(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		kept := Minimal(randomCandidates(r))
		for _, c := range kept {
			for _, other := range kept {
				if other.Token == c.Token {
					continue
				}
				for _, p := range c.Path {
					assert.NotEqual(t, other.Token, p)
				}
			}
		}
	}
}
