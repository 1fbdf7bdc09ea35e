package peptide

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIndication(t *testing.T) {
	tests := []struct {
		input string
		want  Indication
		err   bool
	}{
		{"diabetes", Diabetes, false},
		{"Obesity", Obesity, false},
		{" MS ", MS, false},
		{"Multiple Sclerosis", MS, false},
		{"cancer", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseIndication(tt.input)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIndication_IsGLP1(t *testing.T) {
	assert.True(t, Diabetes.IsGLP1())
	assert.True(t, Obesity.IsGLP1())
	assert.False(t, MS.IsGLP1())
}

func TestIndication_DefaultSequence(t *testing.T) {
	assert.Equal(t, BaselineGLP1, Diabetes.DefaultSequence())
	assert.Equal(t, BaselineGLP1, Obesity.DefaultSequence())
	assert.Equal(t, DefaultMSSequence, MS.DefaultSequence())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("AEK"))
	assert.Error(t, Validate(""))
	assert.Error(t, Validate("AE1"))
	assert.Error(t, Validate("aek"))

	for _, seq := range []string{"AXK", "BEK", "AEJ", "OAA", "UAA", "ZZZ", "AÉK"} {
		err := Validate(seq)
		assert.Error(t, err, seq)
		assert.Contains(t, err.Error(), "invalid residue", seq)
	}
	assert.NoError(t, Validate(AminoAcids))
}

func TestIsResidue(t *testing.T) {
	assert.True(t, IsResidue("A"))
	assert.True(t, IsResidue("Y"))
	assert.False(t, IsResidue("X"))
	assert.False(t, IsResidue("a"))
	assert.False(t, IsResidue("Y+HLE"))
	assert.False(t, IsResidue(""))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "AEK", Normalize("  aek\n"))
}

func TestSubstitute(t *testing.T) {
	assert.Equal(t, "AAEG", Substitute("HAEG", 1, "A"))
	assert.Equal(t, "HAEA", Substitute("HAEG", 4, "A"))
}

func TestDiff(t *testing.T) {
	assert.Empty(t, Diff(BaselineGLP1, BaselineGLP1))

	seq := Substitute(Substitute(BaselineGLP1, 2, "G"), 30, "A")
	got := Diff(seq, BaselineGLP1)
	assert.Equal(t, []Mutation{{Position: 2, Substitution: "G"}, {Position: 30, Substitution: "A"}}, got)

	// only the overlapping prefix is compared
	got = Diff("AAEGTFTSDVSSYLEGQAAKEFIAWLVKGRXXXX", BaselineGLP1)
	assert.Equal(t, []Mutation{{Position: 1, Substitution: "A"}}, got)
}

func TestMutation_String(t *testing.T) {
	assert.Equal(t, "12Y", Mutation{Position: 12, Substitution: "Y"}.String())
}
