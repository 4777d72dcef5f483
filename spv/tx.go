package spv

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// TxOutput is one parsed transaction output.
type TxOutput struct {
	ValueSats   int64
	ScriptPubKey []byte
}

// ParsedTransaction is the minimal structural decode of a raw Bitcoin
// transaction needed by the bridge, per spec.md §3: version, outputs,
// and a segwit flag. Inputs are walked (to find the output section) but
// not retained — nothing downstream needs input data.
type ParsedTransaction struct {
	Version int32
	IsSegwit bool
	Outputs  []TxOutput
}

// IsOpReturn reports whether o's script_pubkey is an OP_RETURN output.
func (o TxOutput) IsOpReturn() bool {
	return len(o.ScriptPubKey) > 0 && o.ScriptPubKey[0] == 0x6a
}

const opReturnOpcode = 0x6a

// txReader is a small cursor over raw transaction bytes implementing the
// varint (CompactSize) decoding Bitcoin's consensus encoding uses.
type txReader struct {
	buf *bytes.Reader
}

func (r *txReader) readBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := r.buf.Read(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}
	return b, nil
}

func (r *txReader) readUint32LE() (uint32, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *txReader) readUint64LE() (uint64, error) {
	b, err := r.readBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// readVarInt decodes a Bitcoin CompactSize integer.
func (r *txReader) readVarInt() (uint64, error) {
	b, err := r.buf.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}

	switch {
	case b < 0xfd:
		return uint64(b), nil
	case b == 0xfd:
		v, err := r.readBytes(2)
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16(v)), nil
	case b == 0xfe:
		v, err := r.readUint32LE()
		return uint64(v), err
	default: // 0xff
		return r.readUint64LE()
	}
}

// ParseTransaction decodes raw per spec.md §4.6 step 5: skip version,
// skip segwit marker+flag if present, walk and discard inputs, decode
// outputs.
func ParseTransaction(raw []byte) (*ParsedTransaction, error) {
	r := &txReader{buf: bytes.NewReader(raw)}

	version, err := r.readUint32LE()
	if err != nil {
		return nil, err
	}

	isSegwit := false
	peek, err := r.buf.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}
	if peek == 0x00 {
		flag, err := r.buf.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
		}
		if flag == 0x01 {
			isSegwit = true
		} else {
			return nil, fmt.Errorf("%w: invalid segwit flag", ErrMalformedTransaction)
		}
	} else {
		if err := r.buf.UnreadByte(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
		}
	}

	inCount, err := r.readVarInt()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < inCount; i++ {
		if _, err := r.readBytes(36); err != nil { // outpoint: 32-byte hash + 4-byte index
			return nil, err
		}
		scriptLen, err := r.readVarInt()
		if err != nil {
			return nil, err
		}
		if _, err := r.readBytes(int(scriptLen)); err != nil {
			return nil, err
		}
		if _, err := r.readUint32LE(); err != nil { // sequence
			return nil, err
		}
	}

	outCount, err := r.readVarInt()
	if err != nil {
		return nil, err
	}
	outputs := make([]TxOutput, 0, outCount)
	for i := uint64(0); i < outCount; i++ {
		value, err := r.readUint64LE()
		if err != nil {
			return nil, err
		}
		scriptLen, err := r.readVarInt()
		if err != nil {
			return nil, err
		}
		script, err := r.readBytes(int(scriptLen))
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, TxOutput{ValueSats: int64(value), ScriptPubKey: script})
	}

	return &ParsedTransaction{
		Version:  int32(version),
		IsSegwit: isSegwit,
		Outputs:  outputs,
	}, nil
}

// FindDepositOutput returns the first output with script_pubkey[0] !=
// OP_RETURN and value > 0, per spec.md §4.6 step 6.
func (p *ParsedTransaction) FindDepositOutput() (*TxOutput, error) {
	for i := range p.Outputs {
		o := &p.Outputs[i]
		if !o.IsOpReturn() && o.ValueSats > 0 {
			return o, nil
		}
	}
	return nil, ErrNoDepositOutput
}

// stealthOpReturnMagic is the magic byte identifying the stealth OP_RETURN
// variant described in spec.md §6: 0x7A.
const stealthOpReturnMagic = 0x7a

// ExtractCommitment scans outputs for the first OP_RETURN whose pushdata
// is >= 32 bytes and extracts the 32-byte commitment, per spec.md §4.6
// step 7 and §6's wire formats:
//   - standard: OP_RETURN <push-len> <32-byte commitment>
//   - stealth:  OP_RETURN <push-len=99> 0x7A 0x02 view_pub(32) spend_pub(33) commitment(32)
//   - legacy v1: a 142-byte OP_RETURN payload, parsed for backward compatibility
func (p *ParsedTransaction) ExtractCommitment() ([32]byte, error) {
	for _, o := range p.Outputs {
		if !o.IsOpReturn() {
			continue
		}

		pushdata, ok := decodeOpReturnPushdata(o.ScriptPubKey)
		if !ok || len(pushdata) < 32 {
			continue
		}

		var commitment [32]byte

		switch {
		case len(pushdata) == 99 && pushdata[0] == stealthOpReturnMagic && pushdata[1] == 0x02:
			// 1 (magic) + 1 (version) + 32 (view_pub) + 33 (spend_pub) + 32 (commitment) = 99
			copy(commitment[:], pushdata[67:99])
			return commitment, nil

		case len(pushdata) == 142:
			// Legacy v1 layout: commitment occupies the final 32 bytes.
			copy(commitment[:], pushdata[110:142])
			return commitment, nil

		default:
			copy(commitment[:], pushdata[:32])
			return commitment, nil
		}
	}

	return [32]byte{}, ErrCommitmentNotFound
}

// decodeOpReturnPushdata extracts the single pushdata payload following
// an OP_RETURN opcode, supporting direct pushes (1-75 bytes), OP_PUSHDATA1
// (0x4c), and OP_PUSHDATA2 (0x4d).
func decodeOpReturnPushdata(script []byte) ([]byte, bool) {
	if len(script) < 2 || script[0] != opReturnOpcode {
		return nil, false
	}

	rest := script[1:]
	op := rest[0]

	switch {
	case op >= 1 && op <= 75:
		if len(rest) < 1+int(op) {
			return nil, false
		}
		return rest[1 : 1+int(op)], true

	case op == 0x4c: // OP_PUSHDATA1
		if len(rest) < 2 {
			return nil, false
		}
		n := int(rest[1])
		if len(rest) < 2+n {
			return nil, false
		}
		return rest[2 : 2+n], true

	case op == 0x4d: // OP_PUSHDATA2
		if len(rest) < 3 {
			return nil, false
		}
		n := int(binary.LittleEndian.Uint16(rest[1:3]))
		if len(rest) < 3+n {
			return nil, false
		}
		return rest[3 : 3+n], true

	default:
		return nil, false
	}
}

// ComputeTxID computes the legacy (non-witness) txid of raw as
// double_sha256(raw_tx) in internal byte order, without the reversal
// that yields the display txid: when raw carries a segwit marker/flag
// and witness data, those are stripped before hashing, matching
// Bitcoin's txid-vs-wtxid distinction.
func ComputeTxID(raw []byte) ([32]byte, error) {
	legacy, err := stripWitnessData(raw)
	if err != nil {
		return [32]byte{}, err
	}
	return doubleSHA256(legacy), nil
}

// stripWitnessData removes the segwit marker/flag and per-input witness
// stacks from raw, returning the legacy serialization used for txid
// hashing. If raw has no segwit marker, it is returned unchanged.
func stripWitnessData(raw []byte) ([]byte, error) {
	r := &txReader{buf: bytes.NewReader(raw)}

	var out bytes.Buffer

	version, err := r.readUint32LE()
	if err != nil {
		return nil, err
	}
	versionBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(versionBytes, version)
	out.Write(versionBytes)

	isSegwit := false
	peek, err := r.buf.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}
	if peek == 0x00 {
		flag, err := r.buf.ReadByte()
		if err != nil {
			return nil, err
		}
		if flag == 0x01 {
			isSegwit = true
		}
	} else {
		if err := r.buf.UnreadByte(); err != nil {
			return nil, err
		}
	}

	inCount, err := r.readVarInt()
	if err != nil {
		return nil, err
	}
	writeVarInt(&out, inCount)

	for i := uint64(0); i < inCount; i++ {
		outpoint, err := r.readBytes(36)
		if err != nil {
			return nil, err
		}
		out.Write(outpoint)

		scriptLen, err := r.readVarInt()
		if err != nil {
			return nil, err
		}
		writeVarInt(&out, scriptLen)

		script, err := r.readBytes(int(scriptLen))
		if err != nil {
			return nil, err
		}
		out.Write(script)

		sequence, err := r.readUint32LE()
		if err != nil {
			return nil, err
		}
		seqBytes := make([]byte, 4)
		binary.LittleEndian.PutUint32(seqBytes, sequence)
		out.Write(seqBytes)
	}

	outCount, err := r.readVarInt()
	if err != nil {
		return nil, err
	}
	writeVarInt(&out, outCount)

	for i := uint64(0); i < outCount; i++ {
		value, err := r.readUint64LE()
		if err != nil {
			return nil, err
		}
		valBytes := make([]byte, 8)
		binary.LittleEndian.PutUint64(valBytes, value)
		out.Write(valBytes)

		scriptLen, err := r.readVarInt()
		if err != nil {
			return nil, err
		}
		writeVarInt(&out, scriptLen)

		script, err := r.readBytes(int(scriptLen))
		if err != nil {
			return nil, err
		}
		out.Write(script)
	}

	if isSegwit {
		// Skip the per-input witness stacks; they don't contribute to
		// the legacy txid.
		for i := uint64(0); i < inCount; i++ {
			stackLen, err := r.readVarInt()
			if err != nil {
				return nil, err
			}
			for j := uint64(0); j < stackLen; j++ {
				itemLen, err := r.readVarInt()
				if err != nil {
					return nil, err
				}
				if _, err := r.readBytes(int(itemLen)); err != nil {
					return nil, err
				}
			}
		}
	}

	locktime, err := r.readUint32LE()
	if err != nil {
		return nil, err
	}
	ltBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(ltBytes, locktime)
	out.Write(ltBytes)

	return out.Bytes(), nil
}

func writeVarInt(buf *bytes.Buffer, v uint64) {
	switch {
	case v < 0xfd:
		buf.WriteByte(byte(v))
	case v <= 0xffff:
		buf.WriteByte(0xfd)
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(v))
		buf.Write(b)
	case v <= 0xffffffff:
		buf.WriteByte(0xfe)
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v))
		buf.Write(b)
	default:
		buf.WriteByte(0xff)
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v)
		buf.Write(b)
	}
}
