package frost

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/btcsuite/btclog"
)

// Server exposes a Signer's DKG and signing-session operations over the
// HTTP API documented in spec.md §6: GET /health, POST /round1,
// POST /round2, POST /dkg/round1, POST /dkg/round2. It is the server-side
// counterpart to HTTPSignerClient.
type Server struct {
	signer *Signer
	log    btclog.Logger
}

// NewServer wraps signer in an http.Handler.
func NewServer(signer *Signer, logger btclog.Logger) *Server {
	if logger == nil {
		logger = btclog.Disabled
	}
	return &Server{signer: signer, log: logger}
}

// Handler returns the http.Handler implementing spec.md §6's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/round1", s.handleRound1)
	mux.HandleFunc("/round2", s.handleRound2)
	mux.HandleFunc("/dkg/round1", s.handleDKGRound1)
	mux.HandleFunc("/dkg/round2", s.handleDKGRound2)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !s.signer.HasKey() {
		status = "no_key"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    status,
		SignerID:  strconv.Itoa(int(s.signer.Identifier())),
		KeyLoaded: s.signer.HasKey(),
	})
}

func (s *Server) handleRound1(w http.ResponseWriter, r *http.Request) {
	var req round1Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sighash, err := decodeHash32(req.Sighash)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tweak, err := decodeOptionalHash32(req.Tweak)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	commitment, id, err := s.signer.SignRound1(req.SessionID, sighash, tweak)
	if err != nil {
		s.log.Debugf("round1 session %s: %v", req.SessionID, err)
		writeError(w, httpStatusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, round1Response{
		Commitment: hex.EncodeToString(commitment.Bytes()),
		SignerID:   strconv.Itoa(int(id)),
		Identifier: strconv.Itoa(int(id)),
	})
}

func (s *Server) handleRound2(w http.ResponseWriter, r *http.Request) {
	var req round2Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sighash, err := decodeHash32(req.Sighash)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tweak, err := decodeOptionalHash32(req.Tweak)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	commitments := make(map[Identifier]Commitment, len(req.Commitments))
	for idStr, hexCommitment := range req.Commitments {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("frost: malformed commitment identifier %q", idStr))
			return
		}
		c, err := decodeCommitment(hexCommitment)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		commitments[Identifier(id)] = c
	}

	identifiers := make([]Identifier, 0, len(req.IdentifierMap))
	for idStr := range req.IdentifierMap {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("frost: malformed identifier %q", idStr))
			return
		}
		identifiers = append(identifiers, Identifier(id))
	}

	share, err := s.signer.SignRound2(req.SessionID, sighash, tweak, commitments, identifiers)
	if err != nil {
		s.log.Debugf("round2 session %s: %v", req.SessionID, err)
		writeError(w, httpStatusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, round2Response{
		SignatureShare: hex.EncodeToString(share.bytes()),
		SignerID:       strconv.Itoa(int(s.signer.Identifier())),
	})
}

type dkgRound1Request struct {
	CeremonyID string `json:"ceremony_id"`
	Self       string `json:"signer_id"`
	Threshold  int    `json:"threshold"`
	Total      int    `json:"total_participants"`
}

type dkgRound1Response struct {
	Package  string `json:"package"`
	SignerID string `json:"signer_id"`
}

func (s *Server) handleDKGRound1(w http.ResponseWriter, r *http.Request) {
	var req dkgRound1Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	selfID, err := strconv.Atoi(req.Self)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("frost: malformed signer_id %q", req.Self))
		return
	}

	pkg, err := s.signer.DKGRound1(req.CeremonyID, Identifier(selfID), req.Threshold, req.Total)
	if err != nil {
		writeError(w, httpStatusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, dkgRound1Response{
		Package:  encodeDKGRound1Package(*pkg),
		SignerID: req.Self,
	})
}

type dkgRound2Request struct {
	CeremonyID     string            `json:"ceremony_id"`
	Round1Packages map[string]string `json:"round1_packages"`
}

type dkgRound2Response struct {
	Packages map[string]string `json:"packages"`
	SignerID string            `json:"signer_id"`
}

func (s *Server) handleDKGRound2(w http.ResponseWriter, r *http.Request) {
	var req dkgRound2Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	allRound1 := make([]DKGRound1Package, 0, len(req.Round1Packages))
	for idStr, hexPkg := range req.Round1Packages {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("frost: malformed identifier %q", idStr))
			return
		}
		pkg, err := decodeDKGRound1Package(Identifier(id), hexPkg)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		allRound1 = append(allRound1, pkg)
	}

	shares, err := s.signer.DKGRound2(req.CeremonyID, allRound1)
	if err != nil {
		writeError(w, httpStatusFor(err), err)
		return
	}

	resp := dkgRound2Response{
		Packages: make(map[string]string, len(shares)),
		SignerID: strconv.Itoa(int(s.signer.Identifier())),
	}
	for _, share := range shares {
		resp.Packages[strconv.Itoa(int(share.Recipient))] = hex.EncodeToString(share.Share.bytes())
	}

	writeJSON(w, http.StatusOK, resp)
}

func encodeDKGRound1Package(pkg DKGRound1Package) string {
	out := make([]byte, 0, len(pkg.Commitments)*32)
	for _, c := range pkg.Commitments {
		out = append(out, c.xOnlyBytes()...)
	}
	return hex.EncodeToString(out)
}

func decodeDKGRound1Package(id Identifier, hexPkg string) (DKGRound1Package, error) {
	raw, err := hex.DecodeString(hexPkg)
	if err != nil || len(raw)%32 != 0 {
		return DKGRound1Package{}, fmt.Errorf("%w: malformed dkg round1 package", ErrSignerHTTP)
	}

	commitments := make([]point, 0, len(raw)/32)
	for i := 0; i < len(raw); i += 32 {
		p, err := xOnlyToPoint(raw[i : i+32])
		if err != nil {
			return DKGRound1Package{}, fmt.Errorf("%w: dkg commitment: %v", ErrSignerHTTP, err)
		}
		commitments = append(commitments, p)
	}

	return DKGRound1Package{Identifier: id, Commitments: commitments}, nil
}

func decodeHash32(hexStr string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(hexStr)
	if err != nil || len(raw) != 32 {
		return out, fmt.Errorf("%w: malformed 32-byte hex value", ErrSignerHTTP)
	}
	copy(out[:], raw)
	return out, nil
}

func decodeOptionalHash32(hexStr string) (*[32]byte, error) {
	if hexStr == "" {
		return nil, nil
	}
	h, err := decodeHash32(hexStr)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func httpStatusFor(err error) int {
	switch {
	case err == ErrNoKey:
		return http.StatusServiceUnavailable
	case err == ErrSessionNotFound, err == ErrCeremonyNotFound:
		return http.StatusNotFound
	case err == ErrSessionExists, err == ErrCeremonyExists, err == ErrSessionUsed:
		return http.StatusConflict
	case err == ErrInvalidThreshold, err == ErrSighashMismatch:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
