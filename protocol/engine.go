package protocol

import (
	"fmt"
	"sync"

	"github.com/mfrager/mystery/crypto"
)

// Phase tracks a challenge instance through the protocol exchange. Phases
// advance strictly in order; operations invoked out of order fail with
// ErrInvalidPhase instead of computing on stale or missing state.
type Phase int

const (
	PhaseInitialized Phase = iota
	PhaseKeysProvisioned
	PhaseCommitted
	PhaseRegistered
	PhaseTransformed
	PhaseFinalized
	PhaseVerified
)

func (p Phase) String() string {
	switch p {
	case PhaseInitialized:
		return "initialized"
	case PhaseKeysProvisioned:
		return "keys-provisioned"
	case PhaseCommitted:
		return "committed"
	case PhaseRegistered:
		return "registered"
	case PhaseTransformed:
		return "transformed"
	case PhaseFinalized:
		return "finalized"
	case PhaseVerified:
		return "verified"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// OwnerMessager implements the owner-side protocol steps as stateless
// functions over explicit inputs. The Engine wraps these with phase
// tracking; distributed deployments call them directly with state loaded
// from storage.
type OwnerMessager struct {
	Config Config
}

// Register one-hot encrypts every character of the secret under the owner
// key, one ciphertext per position. Characters outside the protocol
// alphabet fail with ErrAlphabet before anything is encrypted.
func (m *OwnerMessager) Register(owner *crypto.OwnerDomain, secret string) ([][]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("empty secret: %w", ErrInvalidLength)
	}

	alpha := NewAlphabet()
	if err := alpha.ValidateString(secret); err != nil {
		return nil, err
	}

	vectors := make([][]byte, len(secret))
	for i := 0; i < len(secret); i++ {
		oneHot, err := alpha.OneHot(secret[i])
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		ct, err := owner.EncryptVector(oneHot)
		if err != nil {
			return nil, fmt.Errorf("encrypt position %d: %w", i, err)
		}
		vectors[i] = ct
	}
	return vectors, nil
}

// GeneratePrize draws a fresh 256-bit prize, expands it with the
// error-correcting code and encrypts each coded byte individually under the
// owner key. Per-byte ciphertexts keep the later keystream masking a plain
// byte-wise XOR. The prize value itself is returned to the caller and
// appears nowhere in the encrypted data.
func (m *OwnerMessager) GeneratePrize(owner *crypto.OwnerDomain) (Prize, *PrizeData, error) {
	prize, err := NewPrize()
	if err != nil {
		return Prize{}, nil, err
	}

	coded, err := EncodePrize(prize)
	if err != nil {
		return Prize{}, nil, err
	}

	chunks := make([][]byte, len(coded))
	for i, b := range coded {
		ct, err := owner.EncryptScalar(uint64(b))
		if err != nil {
			return Prize{}, nil, fmt.Errorf("encrypt prize chunk %d: %w", i, err)
		}
		chunks[i] = ct
	}

	return prize, &PrizeData{
		ChunksForOwner: chunks,
		ChunkBits:      8,
		NumChunks:      PrizeTotalBytes,
		ParityBytes:    PrizeParityBytes,
		DataBytes:      PrizeDataBytes,
	}, nil
}

// Finalize is the owner's interactive step. It opens the commitment and
// aborts with ErrCommitmentMismatch if the revealed table does not hash to
// the digest the owner saw before registering. On success it decrypts the
// transformed sequence, derives the keystream, masks the prize bytes and
// re-encrypts both sequence and prize under the verifier key. The plaintext
// sequence and the keystream exist only inside this call.
func (m *OwnerMessager) Finalize(owner *crypto.OwnerDomain, verifierPub *crypto.VerifierPublic, reveal *RevealPackage, digest string, prize *PrizeData) (*FinalPackage, error) {
	canonical, err := reveal.Mappings.CanonicalJSON()
	if err != nil {
		return nil, err
	}
	if !crypto.VerifyDigest(digest, reveal.Salt, canonical) {
		return nil, fmt.Errorf("revealed table does not match digest: %w", ErrCommitmentMismatch)
	}

	sequence := make([]uint64, len(reveal.Transformed))
	for i, ct := range reveal.Transformed {
		v, err := owner.DecryptScalar(ct)
		if err != nil {
			return nil, fmt.Errorf("decrypt sequence position %d: %w", i, err)
		}
		sequence[i] = v
	}

	coded := make([]byte, len(prize.ChunksForOwner))
	for i, ct := range prize.ChunksForOwner {
		v, err := owner.DecryptScalar(ct)
		if err != nil {
			return nil, fmt.Errorf("decrypt prize chunk %d: %w", i, err)
		}
		if v > 0xff {
			return nil, fmt.Errorf("prize chunk %d decrypts to %d, outside byte range", i, v)
		}
		coded[i] = byte(v)
	}
	masked := LockChunks(coded, reveal.SequenceSalt, sequence)

	sequenceData := make([][]byte, len(sequence))
	for i, v := range sequence {
		ct, err := verifierPub.EncryptScalar(v)
		if err != nil {
			return nil, fmt.Errorf("re-encrypt sequence position %d: %w", i, err)
		}
		sequenceData[i] = ct
	}

	prizeChunks := make([][]byte, len(masked))
	for i, b := range masked {
		ct, err := verifierPub.EncryptScalar(uint64(b))
		if err != nil {
			return nil, fmt.Errorf("re-encrypt prize chunk %d: %w", i, err)
		}
		prizeChunks[i] = ct
	}

	return &FinalPackage{
		SequenceData: sequenceData,
		Prize: PrizeBundle{
			Chunks:       prizeChunks,
			SequenceSalt: reveal.SequenceSalt,
			ChunkBits:    prize.ChunkBits,
			NumChunks:    prize.NumChunks,
			ParityBytes:  prize.ParityBytes,
		},
	}, nil
}

// VerifierMessager implements the verifier-side protocol steps as stateless
// functions over explicit inputs.
type VerifierMessager struct {
	Config Config
}

// Commit binds the verifier to a mapping table before any owner data is
// seen. The returned package stays verifier-private; the owner is shown
// only the digest until the reveal.
func (m *VerifierMessager) Commit(table MappingTable) (*CommitmentPackage, error) {
	if err := table.Validate(m.Config.Segments); err != nil {
		return nil, err
	}

	canonical, err := table.CanonicalJSON()
	if err != nil {
		return nil, err
	}
	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, err
	}
	seqSalt, err := crypto.NewSalt()
	if err != nil {
		return nil, err
	}

	return &CommitmentPackage{
		Digest:       crypto.CommitDigest(salt, canonical),
		Salt:         salt,
		Mappings:     table,
		SequenceSalt: seqSalt,
	}, nil
}

// Transform computes the homomorphic dot product of every registered
// one-hot ciphertext with its position's mapping row. The arithmetic runs
// under the owner's public evaluation keys, so the verifier learns nothing:
// the results stay encrypted under the owner key. Returns the reveal
// package that opens the commitment alongside the transformed vectors.
func (m *VerifierMessager) Transform(ownerPub *crypto.OwnerPublic, vectors [][]byte, commitment *CommitmentPackage) (*RevealPackage, error) {
	if len(vectors) != len(commitment.Mappings) {
		return nil, fmt.Errorf("%d registered vectors, %d mapping positions: %w", len(vectors), len(commitment.Mappings), ErrLengthMismatch)
	}

	alpha := NewAlphabet()
	transformed := make([][]byte, len(vectors))
	for i, ct := range vectors {
		weights, err := commitment.Mappings.RowWeights(alpha, i)
		if err != nil {
			return nil, err
		}
		out, err := ownerPub.WeightedSum(ct, weights)
		if err != nil {
			return nil, fmt.Errorf("transform position %d: %w", i, err)
		}
		transformed[i] = out
	}

	return &RevealPackage{
		Transformed:  transformed,
		Salt:         commitment.Salt,
		Mappings:     commitment.Mappings,
		SequenceSalt: commitment.SequenceSalt,
	}, nil
}

// Verify runs the blinded sum-of-squares match between the finalized
// sequence ciphertexts and the candidate target. The distance is multiplied
// by a fresh random blinder before decryption, so a failed attempt reveals
// only that it failed. On a match the target sequence re-derives the
// keystream, the prize chunks are decrypted and unmasked, and the
// error-correcting decode recovers the prize value.
func (m *VerifierMessager) Verify(verifier *crypto.VerifierDomain, final *FinalPackage, target []uint64) (*VerifyResult, error) {
	t := m.Config.Params.PlainModulus
	for i, v := range target {
		if v >= t {
			return nil, fmt.Errorf("target position %d value %d exceeds plain modulus %d", i, v, t)
		}
	}
	if len(final.SequenceData) == 0 {
		return nil, fmt.Errorf("final package has no sequence data: %w", ErrInvalidLength)
	}

	blinder, err := crypto.RandomBlinder(t)
	if err != nil {
		return nil, err
	}
	distance, err := verifier.BlindedDistance(final.SequenceData, target, blinder)
	if err != nil {
		return nil, fmt.Errorf("match distance: %w", err)
	}
	if distance != 0 {
		return &VerifyResult{IsMatch: false}, nil
	}

	masked := make([]byte, len(final.Prize.Chunks))
	for i, ct := range final.Prize.Chunks {
		v, err := verifier.DecryptScalar(ct)
		if err != nil {
			return nil, fmt.Errorf("decrypt prize chunk %d: %w", i, err)
		}
		if v > 0xff {
			return nil, fmt.Errorf("prize chunk %d decrypts to %d, outside byte range", i, v)
		}
		masked[i] = byte(v)
	}

	// Entries beyond the sequence length are ignored by the distance and
	// must not leak into the keystream.
	if len(target) > len(final.SequenceData) {
		target = target[:len(final.SequenceData)]
	}
	coded := UnlockChunks(masked, final.Prize.SequenceSalt, target)
	prize, err := DecodePrize(coded)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{IsMatch: true, Prize: &prize}, nil
}

// Engine drives one challenge instance through the five-phase exchange. It
// holds both key domains, so it suits single-process setups (tests, the
// demo, an owner tool preparing challenge packages). Deployments that split
// the roles across parties use the messagers directly and carry the
// packages between processes.
//
// All methods are safe for concurrent use; distinct challenge instances
// share nothing and may run fully in parallel.
type Engine struct {
	cfg Config

	mu    sync.Mutex
	phase Phase

	owner       *crypto.OwnerDomain
	verifier    *crypto.VerifierDomain
	ownerPub    *crypto.OwnerPublic
	verifierPub *crypto.VerifierPublic

	prizeData    *PrizeData
	havePrize    bool
	commitment   *CommitmentPackage
	registered   [][]byte
	reveal       *RevealPackage
	finalPackage *FinalPackage
}

// NewEngine validates the configuration and returns an engine in the
// initialized phase.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, phase: PhaseInitialized}, nil
}

// Phase reports the engine's current protocol phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *Engine) requirePhase(op string, want Phase) error {
	if e.phase != want {
		return fmt.Errorf("%s in phase %s (want %s): %w", op, e.phase, want, ErrInvalidPhase)
	}
	return nil
}

// ProvisionKeys generates the two independent key domains and opens both
// public evaluation handles. The domains share no key material; compromise
// of one reveals nothing about the other.
func (e *Engine) ProvisionKeys() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requirePhase("provision keys", PhaseInitialized); err != nil {
		return err
	}

	owner, err := crypto.NewOwnerDomain(e.cfg.Params)
	if err != nil {
		return err
	}
	verifier, err := crypto.NewVerifierDomain(e.cfg.Params)
	if err != nil {
		return err
	}

	ownerSet, err := owner.PublicSet()
	if err != nil {
		return err
	}
	ownerPub, err := crypto.NewOwnerPublic(ownerSet)
	if err != nil {
		return err
	}
	verifierSet, err := verifier.PublicSet()
	if err != nil {
		return err
	}
	verifierPub, err := crypto.NewVerifierPublic(verifierSet)
	if err != nil {
		return err
	}

	e.owner = owner
	e.verifier = verifier
	e.ownerPub = ownerPub
	e.verifierPub = verifierPub
	e.phase = PhaseKeysProvisioned
	return nil
}

// GeneratePrize creates the challenge's prize and its owner-encrypted coded
// chunks. Allowed once per challenge, any time after keys exist and before
// finalization consumes the chunks. Returns the prize value, which only the
// generating party should retain.
func (e *Engine) GeneratePrize() (Prize, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase < PhaseKeysProvisioned || e.phase >= PhaseFinalized {
		return Prize{}, fmt.Errorf("generate prize in phase %s: %w", e.phase, ErrInvalidPhase)
	}
	if e.havePrize {
		return Prize{}, fmt.Errorf("prize already generated: %w", ErrInvalidPhase)
	}

	prize, data, err := (&OwnerMessager{Config: e.cfg}).GeneratePrize(e.owner)
	if err != nil {
		return Prize{}, err
	}
	e.prizeData = data
	e.havePrize = true
	return prize, nil
}

// GenerateMappings builds a fresh mapping table with the engine's
// configured segment count. The table is not retained; committing it is a
// separate step so callers can inspect or persist it first.
func (e *Engine) GenerateMappings(length int) (MappingTable, error) {
	return GenerateMappings(length, e.cfg.Segments)
}

// Commit binds the engine to a mapping table. After this point the table
// cannot change without Finalize detecting the mismatch.
func (e *Engine) Commit(table MappingTable) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requirePhase("commit", PhaseKeysProvisioned); err != nil {
		return "", err
	}

	pkg, err := (&VerifierMessager{Config: e.cfg}).Commit(table)
	if err != nil {
		return "", err
	}
	e.commitment = pkg
	e.phase = PhaseCommitted
	return pkg.Digest, nil
}

// Register encrypts the owner's secret string, one one-hot ciphertext per
// character. The secret must exactly fill the committed table.
func (e *Engine) Register(secret string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requirePhase("register", PhaseCommitted); err != nil {
		return err
	}
	if len(secret) != len(e.commitment.Mappings) {
		return fmt.Errorf("secret %d characters, table %d positions: %w", len(secret), len(e.commitment.Mappings), ErrLengthMismatch)
	}

	vectors, err := (&OwnerMessager{Config: e.cfg}).Register(e.owner, secret)
	if err != nil {
		return err
	}
	e.registered = vectors
	e.phase = PhaseRegistered
	return nil
}

// Transform applies the committed mapping to the registered ciphertexts
// under the owner's public evaluation keys.
func (e *Engine) Transform() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requirePhase("transform", PhaseRegistered); err != nil {
		return err
	}

	reveal, err := (&VerifierMessager{Config: e.cfg}).Transform(e.ownerPub, e.registered, e.commitment)
	if err != nil {
		return err
	}
	e.reveal = reveal
	e.phase = PhaseTransformed
	return nil
}

// Finalize checks the commitment reveal and produces the final package:
// the password sequence and the keystream-masked prize, re-encrypted under
// the verifier key. Requires a generated prize.
func (e *Engine) Finalize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requirePhase("finalize", PhaseTransformed); err != nil {
		return err
	}
	if !e.havePrize {
		return fmt.Errorf("finalize without a generated prize: %w", ErrInvalidPhase)
	}

	final, err := (&OwnerMessager{Config: e.cfg}).Finalize(e.owner, e.verifierPub, e.reveal, e.commitment.Digest, e.prizeData)
	if err != nil {
		return err
	}
	e.finalPackage = final
	e.phase = PhaseFinalized
	return nil
}

// Verify runs the match test against a candidate target sequence. A
// mismatch is a normal result: the engine stays finalized and further
// attempts are allowed (attempt budgets are the storage layer's concern).
// A match moves the engine to the verified phase and returns the prize.
func (e *Engine) Verify(target []uint64) (*VerifyResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requirePhase("verify", PhaseFinalized); err != nil {
		return nil, err
	}

	result, err := (&VerifierMessager{Config: e.cfg}).Verify(e.verifier, e.finalPackage, target)
	if err != nil {
		return nil, err
	}
	if result.IsMatch {
		e.phase = PhaseVerified
	}
	return result, nil
}

// Mappings returns the committed mapping table, or nil before Commit.
func (e *Engine) Mappings() MappingTable {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.commitment == nil {
		return nil
	}
	return e.commitment.Mappings
}

// CommitmentDigest returns the committed digest, or "" before Commit.
func (e *Engine) CommitmentDigest() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.commitment == nil {
		return ""
	}
	return e.commitment.Digest
}

// Final returns the finalized package, or nil before Finalize.
func (e *Engine) Final() *FinalPackage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finalPackage
}

// VerifierPrivate serializes the verifier domain for storage alongside a
// challenge package. Callers must treat the result like a private key.
func (e *Engine) VerifierPrivate() (*crypto.VerifierPrivateSet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.verifier == nil {
		return nil, fmt.Errorf("verifier keys not provisioned: %w", ErrInvalidPhase)
	}
	return e.verifier.PrivateSet()
}

// OwnerPrivate serializes the owner domain.
func (e *Engine) OwnerPrivate() (*crypto.OwnerPrivateSet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.owner == nil {
		return nil, fmt.Errorf("owner keys not provisioned: %w", ErrInvalidPhase)
	}
	return e.owner.PrivateSet()
}
