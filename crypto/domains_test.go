package crypto

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// Key generation dominates test time, so all domain tests share one pair of
// domains at the smallest supported degree.
var (
	testDomainsOnce sync.Once
	testOwner       *OwnerDomain
	testVerifier    *VerifierDomain
	testDomainsErr  error
)

func testParams() Params {
	return Params{PolyDegree: 4096, PlainModulus: 65537}
}

func testDomains(t *testing.T) (*OwnerDomain, *VerifierDomain) {
	t.Helper()
	testDomainsOnce.Do(func() {
		testOwner, testDomainsErr = NewOwnerDomain(testParams())
		if testDomainsErr != nil {
			return
		}
		testVerifier, testDomainsErr = NewVerifierDomain(testParams())
	})
	require.NoError(t, testDomainsErr)
	return testOwner, testVerifier
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())
	require.NoError(t, testParams().Validate())

	require.Error(t, Params{PolyDegree: 1234, PlainModulus: 65537}.Validate(), "unsupported degree")
	require.Error(t, Params{PolyDegree: 8192, PlainModulus: 65536}.Validate(), "not prime")
	require.Error(t, Params{PolyDegree: 8192, PlainModulus: 7}.Validate(), "not NTT friendly")
	require.Error(t, Params{PolyDegree: 8192, PlainModulus: 0}.Validate())
}

func TestOwnerDomainScalarRoundTrip(t *testing.T) {
	owner, _ := testDomains(t)

	ct, err := owner.EncryptScalar(12345)
	require.NoError(t, err)

	v, err := owner.DecryptScalar(ct)
	require.NoError(t, err)
	require.Equal(t, uint64(12345), v)
}

func TestOwnerDomainVectorValidation(t *testing.T) {
	owner, _ := testDomains(t)

	_, err := owner.EncryptVector(nil)
	require.Error(t, err)

	tooLong := make([]uint64, testParams().PolyDegree+1)
	_, err = owner.EncryptVector(tooLong)
	require.Error(t, err)
}

func TestWeightedSumSelectsWeight(t *testing.T) {
	owner, _ := testDomains(t)

	set, err := owner.PublicSet()
	require.NoError(t, err)
	ownerPub, err := NewOwnerPublic(set)
	require.NoError(t, err)

	// One-hot selector at position 17 against a 95-entry weight row.
	oneHot := make([]uint64, 95)
	oneHot[17] = 1
	weights := make([]uint64, 95)
	for i := range weights {
		weights[i] = uint64(i + 1)
	}

	ct, err := owner.EncryptVector(oneHot)
	require.NoError(t, err)

	folded, err := ownerPub.WeightedSum(ct, weights)
	require.NoError(t, err)

	v, err := owner.DecryptScalar(folded)
	require.NoError(t, err)
	require.Equal(t, uint64(18), v)
}

func TestWeightedSumRejectsBadInput(t *testing.T) {
	owner, _ := testDomains(t)

	set, err := owner.PublicSet()
	require.NoError(t, err)
	ownerPub, err := NewOwnerPublic(set)
	require.NoError(t, err)

	ct, err := owner.EncryptScalar(1)
	require.NoError(t, err)

	_, err = ownerPub.WeightedSum(ct, nil)
	require.Error(t, err)

	_, err = ownerPub.WeightedSum([]byte("not a ciphertext"), []uint64{1})
	require.Error(t, err)
}

func TestBlindedDistance(t *testing.T) {
	_, verifier := testDomains(t)

	set, err := verifier.PublicSet()
	require.NoError(t, err)
	verifierPub, err := NewVerifierPublic(set)
	require.NoError(t, err)

	values := []uint64{3, 7, 1, 9}
	cts := make([][]byte, len(values))
	for i, v := range values {
		cts[i], err = verifierPub.EncryptScalar(v)
		require.NoError(t, err)
	}

	blinder, err := RandomBlinder(verifier.Params().PlainModulus)
	require.NoError(t, err)

	// Exact match decrypts to zero regardless of the blinder.
	d, err := verifier.BlindedDistance(cts, []uint64{3, 7, 1, 9}, blinder)
	require.NoError(t, err)
	require.Zero(t, d)

	// A single wrong value makes the distance nonzero.
	d, err = verifier.BlindedDistance(cts, []uint64{3, 7, 2, 9}, blinder)
	require.NoError(t, err)
	require.NotZero(t, d)

	// Missing target entries count as zero and miss the nonzero values.
	d, err = verifier.BlindedDistance(cts, []uint64{3, 7}, blinder)
	require.NoError(t, err)
	require.NotZero(t, d)

	// Blinder outside [1, t-1] is rejected.
	_, err = verifier.BlindedDistance(cts, values, 0)
	require.ErrorIs(t, err, ErrBlinderRange)
	_, err = verifier.BlindedDistance(cts, values, verifier.Params().PlainModulus)
	require.ErrorIs(t, err, ErrBlinderRange)
}

func TestPrivateSetRoundTrip(t *testing.T) {
	owner, verifier := testDomains(t)

	ct, err := owner.EncryptScalar(777)
	require.NoError(t, err)

	// Serialize through JSON the way the packages travel on the wire.
	set, err := owner.PrivateSet()
	require.NoError(t, err)
	blob, err := json.Marshal(set)
	require.NoError(t, err)

	var decoded OwnerPrivateSet
	require.NoError(t, json.Unmarshal(blob, &decoded))

	restored, err := LoadOwnerDomain(&decoded)
	require.NoError(t, err)

	v, err := restored.DecryptScalar(ct)
	require.NoError(t, err)
	require.Equal(t, uint64(777), v)

	// Same exercise for the verifier side.
	vset, err := verifier.PrivateSet()
	require.NoError(t, err)
	restoredVerifier, err := LoadVerifierDomain(vset)
	require.NoError(t, err)

	vpubSet, err := restoredVerifier.PublicSet()
	require.NoError(t, err)
	vpub, err := NewVerifierPublic(vpubSet)
	require.NoError(t, err)

	vct, err := vpub.EncryptScalar(42)
	require.NoError(t, err)
	got, err := verifier.DecryptScalar(vct)
	require.NoError(t, err)
	require.Equal(t, uint64(42), got)
}

func TestDomainsAreIndependent(t *testing.T) {
	owner, verifier := testDomains(t)

	ct, err := owner.EncryptScalar(5)
	require.NoError(t, err)

	// Decrypting under the wrong domain yields noise, not the value.
	v, err := verifier.DecryptScalar(ct)
	require.NoError(t, err)
	require.NotEqual(t, uint64(5), v)
}
