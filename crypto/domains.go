package crypto

import (
	"errors"
	"fmt"

	"github.com/tuneinsight/lattigo/v4/bfv"
	"github.com/tuneinsight/lattigo/v4/rlwe"
)

// ErrBlinderRange is returned when a blinder falls outside [1, t-1].
var ErrBlinderRange = errors.New("blinder outside plaintext field range")

// domainKeys bundles a freshly generated or deserialized BFV key set.
// OwnerDomain and VerifierDomain both build on it but remain distinct
// exported types so owner and verifier key material cannot be mixed up.
type domainKeys struct {
	params bfv.Parameters
	sk     *rlwe.SecretKey
	pk     *rlwe.PublicKey
	rlk    *rlwe.RelinearizationKey
	rtks   *rlwe.RotationKeySet
}

func generateDomainKeys(p Params) (*domainKeys, error) {
	params, err := p.bfvParameters()
	if err != nil {
		return nil, err
	}

	kgen := bfv.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPair()

	return &domainKeys{
		params: params,
		sk:     sk,
		pk:     pk,
		rlk:    kgen.GenRelinearizationKey(sk, 1),
		rtks:   kgen.GenRotationKeysForInnerSum(sk),
	}, nil
}

func (k *domainKeys) publicParts() (params, pk, rlk, rtks []byte, err error) {
	if params, err = k.params.MarshalBinary(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal params: %w", err)
	}
	if pk, err = k.pk.MarshalBinary(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal public key: %w", err)
	}
	if rlk, err = k.rlk.MarshalBinary(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal relin key: %w", err)
	}
	if rtks, err = k.rtks.MarshalBinary(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal rotation keys: %w", err)
	}
	return params, pk, rlk, rtks, nil
}

func loadDomainKeys(paramsBytes, skBytes, pkBytes, rlkBytes, rtksBytes []byte) (*domainKeys, error) {
	var params bfv.Parameters
	if err := params.UnmarshalBinary(paramsBytes); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}

	k := &domainKeys{
		params: params,
		sk:     new(rlwe.SecretKey),
		pk:     new(rlwe.PublicKey),
		rlk:    new(rlwe.RelinearizationKey),
		rtks:   new(rlwe.RotationKeySet),
	}
	if err := k.sk.UnmarshalBinary(skBytes); err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}
	if err := k.pk.UnmarshalBinary(pkBytes); err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if err := k.rlk.UnmarshalBinary(rlkBytes); err != nil {
		return nil, fmt.Errorf("decode relin key: %w", err)
	}
	if err := k.rtks.UnmarshalBinary(rtksBytes); err != nil {
		return nil, fmt.Errorf("decode rotation keys: %w", err)
	}
	return k, nil
}

func unmarshalCiphertext(b []byte) (*rlwe.Ciphertext, error) {
	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	return ct, nil
}

// ---------------------------------------------------------------------------
// Owner domain
// ---------------------------------------------------------------------------

// OwnerDomain holds the owner-side BFV key set. The owner registers secret
// characters and later decrypts transformed sequence values; the secret key
// never leaves this type except through PrivateSet.
type OwnerDomain struct {
	keys      *domainKeys
	encoder   bfv.Encoder
	encryptor rlwe.Encryptor
	decryptor rlwe.Decryptor
}

// OwnerPublicSet is the owner evaluation material safe to publish: lattice
// parameters, public key, relinearization key and rotation keys. It lets
// the opposite party encrypt under the owner key and evaluate weighted sums
// without access to the secret key.
type OwnerPublicSet struct {
	Params       []byte `json:"params"`
	PublicKey    []byte `json:"public_key"`
	RelinKey     []byte `json:"relin_key"`
	RotationKeys []byte `json:"rotation_keys"`
}

// OwnerPrivateSet serializes the complete owner domain, secret key included.
// Store it like a private key.
type OwnerPrivateSet struct {
	OwnerPublicSet
	SecretKey []byte `json:"secret_key"`
}

// NewOwnerDomain generates a fresh owner key domain.
func NewOwnerDomain(p Params) (*OwnerDomain, error) {
	keys, err := generateDomainKeys(p)
	if err != nil {
		return nil, fmt.Errorf("generate owner keys: %w", err)
	}
	return newOwnerDomain(keys), nil
}

// LoadOwnerDomain reconstructs an owner domain from its private set.
func LoadOwnerDomain(set *OwnerPrivateSet) (*OwnerDomain, error) {
	keys, err := loadDomainKeys(set.Params, set.SecretKey, set.PublicKey, set.RelinKey, set.RotationKeys)
	if err != nil {
		return nil, fmt.Errorf("load owner domain: %w", err)
	}
	return newOwnerDomain(keys), nil
}

func newOwnerDomain(keys *domainKeys) *OwnerDomain {
	return &OwnerDomain{
		keys:      keys,
		encoder:   bfv.NewEncoder(keys.params),
		encryptor: bfv.NewEncryptor(keys.params, keys.pk),
		decryptor: bfv.NewDecryptor(keys.params, keys.sk),
	}
}

// Params reports the lattice configuration of the domain.
func (d *OwnerDomain) Params() Params {
	return Params{PolyDegree: d.keys.params.N(), PlainModulus: d.keys.params.T()}
}

// EncryptVector encrypts values into the ciphertext slots, zero-padding up
// to the ring dimension.
func (d *OwnerDomain) EncryptVector(values []uint64) ([]byte, error) {
	return encryptVector(d.keys.params, d.encoder, d.encryptor, values)
}

// EncryptScalar encrypts a single value into slot zero.
func (d *OwnerDomain) EncryptScalar(v uint64) ([]byte, error) {
	return d.EncryptVector([]uint64{v})
}

// DecryptScalar decrypts a ciphertext and returns slot zero.
func (d *OwnerDomain) DecryptScalar(ct []byte) (uint64, error) {
	return decryptScalar(d.encoder, d.decryptor, ct)
}

// PublicSet serializes the published evaluation material.
func (d *OwnerDomain) PublicSet() (*OwnerPublicSet, error) {
	params, pk, rlk, rtks, err := d.keys.publicParts()
	if err != nil {
		return nil, err
	}
	return &OwnerPublicSet{Params: params, PublicKey: pk, RelinKey: rlk, RotationKeys: rtks}, nil
}

// PrivateSet serializes the full domain including the secret key.
func (d *OwnerDomain) PrivateSet() (*OwnerPrivateSet, error) {
	pub, err := d.PublicSet()
	if err != nil {
		return nil, err
	}
	sk, err := d.keys.sk.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal secret key: %w", err)
	}
	return &OwnerPrivateSet{OwnerPublicSet: *pub, SecretKey: sk}, nil
}

// OwnerPublic is an encrypt-and-evaluate handle opened from an
// OwnerPublicSet. It carries no secret key.
type OwnerPublic struct {
	params    bfv.Parameters
	encoder   bfv.Encoder
	encryptor rlwe.Encryptor
	evaluator bfv.Evaluator
}

// NewOwnerPublic opens a published owner evaluation set.
func NewOwnerPublic(set *OwnerPublicSet) (*OwnerPublic, error) {
	var params bfv.Parameters
	if err := params.UnmarshalBinary(set.Params); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}

	pk := new(rlwe.PublicKey)
	if err := pk.UnmarshalBinary(set.PublicKey); err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	rlk := new(rlwe.RelinearizationKey)
	if err := rlk.UnmarshalBinary(set.RelinKey); err != nil {
		return nil, fmt.Errorf("decode relin key: %w", err)
	}
	rtks := new(rlwe.RotationKeySet)
	if err := rtks.UnmarshalBinary(set.RotationKeys); err != nil {
		return nil, fmt.Errorf("decode rotation keys: %w", err)
	}

	return &OwnerPublic{
		params:    params,
		encoder:   bfv.NewEncoder(params),
		encryptor: bfv.NewEncryptor(params, pk),
		evaluator: bfv.NewEvaluator(params, rlwe.EvaluationKey{Rlk: rlk, Rtks: rtks}),
	}, nil
}

// EncryptVector encrypts values under the owner public key.
func (o *OwnerPublic) EncryptVector(values []uint64) ([]byte, error) {
	return encryptVector(o.params, o.encoder, o.encryptor, values)
}

// EncryptScalar encrypts a single value into slot zero under the owner
// public key.
func (o *OwnerPublic) EncryptScalar(v uint64) ([]byte, error) {
	return o.EncryptVector([]uint64{v})
}

// WeightedSum multiplies the encrypted vector slot-wise by the weight row
// and folds the products into slot zero with a rotation inner sum. Applied
// to a one-hot selector this computes the homomorphic dot product: slot
// zero of the result holds the weight selected by the one-hot position.
func (o *OwnerPublic) WeightedSum(ctBytes []byte, weights []uint64) ([]byte, error) {
	if len(weights) == 0 {
		return nil, errors.New("empty weight row")
	}
	if len(weights) > o.params.N() {
		return nil, fmt.Errorf("weight row length %d exceeds slot count %d", len(weights), o.params.N())
	}

	ct, err := unmarshalCiphertext(ctBytes)
	if err != nil {
		return nil, err
	}

	pt := bfv.NewPlaintext(o.params, o.params.MaxLevel())
	o.encoder.Encode(weights, pt)

	prod := o.evaluator.MulNew(ct, pt)
	if len(weights) > 1 {
		folded := bfv.NewCiphertext(o.params, prod.Degree(), prod.Level())
		o.evaluator.InnerSum(prod, folded)
		prod = folded
	}

	out, err := prod.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal ciphertext: %w", err)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Verifier domain
// ---------------------------------------------------------------------------

// VerifierDomain holds the verifier-side BFV key set. The verifier receives
// re-encrypted sequence values and prize chunks and evaluates the blinded
// match distance under its own keys.
type VerifierDomain struct {
	keys      *domainKeys
	encoder   bfv.Encoder
	encryptor rlwe.Encryptor
	decryptor rlwe.Decryptor
	evaluator bfv.Evaluator
}

// VerifierPublicSet is the verifier evaluation material safe to publish.
type VerifierPublicSet struct {
	Params       []byte `json:"params"`
	PublicKey    []byte `json:"public_key"`
	RelinKey     []byte `json:"relin_key"`
	RotationKeys []byte `json:"rotation_keys"`
}

// VerifierPrivateSet serializes the complete verifier domain, secret key
// included.
type VerifierPrivateSet struct {
	VerifierPublicSet
	SecretKey []byte `json:"secret_key"`
}

// NewVerifierDomain generates a fresh verifier key domain.
func NewVerifierDomain(p Params) (*VerifierDomain, error) {
	keys, err := generateDomainKeys(p)
	if err != nil {
		return nil, fmt.Errorf("generate verifier keys: %w", err)
	}
	return newVerifierDomain(keys), nil
}

// LoadVerifierDomain reconstructs a verifier domain from its private set.
func LoadVerifierDomain(set *VerifierPrivateSet) (*VerifierDomain, error) {
	keys, err := loadDomainKeys(set.Params, set.SecretKey, set.PublicKey, set.RelinKey, set.RotationKeys)
	if err != nil {
		return nil, fmt.Errorf("load verifier domain: %w", err)
	}
	return newVerifierDomain(keys), nil
}

func newVerifierDomain(keys *domainKeys) *VerifierDomain {
	return &VerifierDomain{
		keys:      keys,
		encoder:   bfv.NewEncoder(keys.params),
		encryptor: bfv.NewEncryptor(keys.params, keys.pk),
		decryptor: bfv.NewDecryptor(keys.params, keys.sk),
		evaluator: bfv.NewEvaluator(keys.params, rlwe.EvaluationKey{Rlk: keys.rlk, Rtks: keys.rtks}),
	}
}

// Params reports the lattice configuration of the domain.
func (d *VerifierDomain) Params() Params {
	return Params{PolyDegree: d.keys.params.N(), PlainModulus: d.keys.params.T()}
}

// DecryptScalar decrypts a ciphertext and returns slot zero.
func (d *VerifierDomain) DecryptScalar(ct []byte) (uint64, error) {
	return decryptScalar(d.encoder, d.decryptor, ct)
}

// BlindedDistance computes blinder * sum_i (ct_i - target_i)^2 over the
// plaintext field and decrypts the result. Missing target entries count as
// zero; target values are reduced mod t. The caller learns only whether the
// distance is zero: a nonzero distance is multiplied by the blinder before
// decryption, so its value reveals nothing about the individual differences.
func (d *VerifierDomain) BlindedDistance(cts [][]byte, targets []uint64, blinder uint64) (uint64, error) {
	t := d.keys.params.T()
	if blinder == 0 || blinder >= t {
		return 0, ErrBlinderRange
	}
	if len(cts) == 0 {
		return 0, nil
	}

	var total *rlwe.Ciphertext
	for i, ctBytes := range cts {
		ct, err := unmarshalCiphertext(ctBytes)
		if err != nil {
			return 0, fmt.Errorf("sequence position %d: %w", i, err)
		}

		var target uint64
		if i < len(targets) {
			target = targets[i] % t
		}
		pt := bfv.NewPlaintext(d.keys.params, d.keys.params.MaxLevel())
		d.encoder.Encode([]uint64{target}, pt)

		diff := d.evaluator.SubNew(ct, pt)
		sq := d.evaluator.RelinearizeNew(d.evaluator.MulNew(diff, diff))

		if total == nil {
			total = sq
		} else {
			d.evaluator.Add(total, sq, total)
		}
	}

	blinded := d.evaluator.MulScalarNew(total, blinder)
	return decryptScalarCt(d.encoder, d.decryptor, blinded)
}

// PublicSet serializes the published evaluation material.
func (d *VerifierDomain) PublicSet() (*VerifierPublicSet, error) {
	params, pk, rlk, rtks, err := d.keys.publicParts()
	if err != nil {
		return nil, err
	}
	return &VerifierPublicSet{Params: params, PublicKey: pk, RelinKey: rlk, RotationKeys: rtks}, nil
}

// PrivateSet serializes the full domain including the secret key.
func (d *VerifierDomain) PrivateSet() (*VerifierPrivateSet, error) {
	pub, err := d.PublicSet()
	if err != nil {
		return nil, err
	}
	sk, err := d.keys.sk.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal secret key: %w", err)
	}
	return &VerifierPrivateSet{VerifierPublicSet: *pub, SecretKey: sk}, nil
}

// VerifierPublic is an encrypt-only handle opened from a VerifierPublicSet.
// The owner uses it to re-encrypt finalized values for the verifier.
type VerifierPublic struct {
	params    bfv.Parameters
	encoder   bfv.Encoder
	encryptor rlwe.Encryptor
}

// NewVerifierPublic opens a published verifier evaluation set.
func NewVerifierPublic(set *VerifierPublicSet) (*VerifierPublic, error) {
	var params bfv.Parameters
	if err := params.UnmarshalBinary(set.Params); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	pk := new(rlwe.PublicKey)
	if err := pk.UnmarshalBinary(set.PublicKey); err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}

	return &VerifierPublic{
		params:    params,
		encoder:   bfv.NewEncoder(params),
		encryptor: bfv.NewEncryptor(params, pk),
	}, nil
}

// EncryptScalar encrypts a single value into slot zero under the verifier
// public key.
func (v *VerifierPublic) EncryptScalar(val uint64) ([]byte, error) {
	return encryptVector(v.params, v.encoder, v.encryptor, []uint64{val})
}

// ---------------------------------------------------------------------------
// Shared plumbing
// ---------------------------------------------------------------------------

func encryptVector(params bfv.Parameters, encoder bfv.Encoder, encryptor rlwe.Encryptor, values []uint64) ([]byte, error) {
	if len(values) == 0 {
		return nil, errors.New("empty plaintext vector")
	}
	if len(values) > params.N() {
		return nil, fmt.Errorf("vector length %d exceeds slot count %d", len(values), params.N())
	}

	pt := bfv.NewPlaintext(params, params.MaxLevel())
	encoder.Encode(values, pt)

	out, err := encryptor.EncryptNew(pt).MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal ciphertext: %w", err)
	}
	return out, nil
}

func decryptScalar(encoder bfv.Encoder, decryptor rlwe.Decryptor, ctBytes []byte) (uint64, error) {
	ct, err := unmarshalCiphertext(ctBytes)
	if err != nil {
		return 0, err
	}
	return decryptScalarCt(encoder, decryptor, ct)
}

func decryptScalarCt(encoder bfv.Encoder, decryptor rlwe.Decryptor, ct *rlwe.Ciphertext) (uint64, error) {
	return encoder.DecodeUintNew(decryptor.DecryptNew(ct))[0], nil
}
