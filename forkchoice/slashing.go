package forkchoice

import (
	"github.com/leancore/beacon/errtypes"
	"github.com/leancore/beacon/state"
	"github.com/leancore/beacon/types"
)

// OnAttesterSlashing validates a double-vote/surround-vote allegation
// against the justified-checkpoint state and records the intersection of
// both attestations' signers into equivocating_indices, per spec.md
// §4.2.6. Equivocating validators' existing and future votes are
// excluded from weight computation.
func (s *Store) OnAttesterSlashing(slashing *types.AttesterSlashing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a1, a2 := &slashing.Attestation1, &slashing.Attestation2
	if !types.IsSlashableAttestationData(&a1.Data, &a2.Data) {
		return errtypes.Validationf("attester_slashing_not_slashable", "attestations are not a slashable pair")
	}

	justifiedState, ok := s.states[s.justifiedCheckpoint.Root]
	if !ok {
		return errtypes.Ignoref("unknown_justified_state", "justified checkpoint root %x not known", s.justifiedCheckpoint.Root)
	}
	if err := state.VerifyIndexedAttestation(s.cfg, s.v.BLS, justifiedState, a1); err != nil {
		return err
	}
	if err := state.VerifyIndexedAttestation(s.cfg, s.v.BLS, justifiedState, a2); err != nil {
		return err
	}

	set2 := make(map[types.ValidatorIndex]bool, len(a2.AttestingIndices))
	for _, idx := range a2.AttestingIndices {
		set2[idx] = true
	}
	found := false
	for _, idx := range a1.AttestingIndices {
		if set2[idx] {
			s.equivocatingIndices[idx] = true
			found = true
		}
	}
	if !found {
		return errtypes.Validationf("attester_slashing_no_overlap", "no validator appears in both attesting-index sets")
	}
	return nil
}
