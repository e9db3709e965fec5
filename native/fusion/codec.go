package fusion

import (
	"bytes"
	"encoding/binary"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// orderCodecVersion tags the canonical order encoding. Bumping it changes
// every order hash, so it only moves when the field layout does.
const orderCodecVersion byte = 1

// EncodeOrder renders the canonical binary form of an order: a version byte
// followed by fixed-width little-endian fields in frozen declaration order,
// optional accounts as a presence byte plus payload, and the breakpoint list
// as a u32 count plus entries. Digest stability across implementations depends
// on this layout never changing under the same version byte.
func EncodeOrder(order OrderConfig) []byte {
	var buf bytes.Buffer
	buf.WriteByte(orderCodecVersion)
	writeUint32(&buf, order.ID)
	writeUint64(&buf, order.SrcAmount)
	writeUint64(&buf, order.MinDstAmount)
	writeUint64(&buf, order.EstimatedDstAmount)
	writeUint32(&buf, order.ExpirationTime)
	writeBool(&buf, order.NativeDstAsset)
	buf.Write(order.Receiver[:])

	writeOptionalAccount(&buf, order.Fee.ProtocolDstAcc)
	writeOptionalAccount(&buf, order.Fee.IntegratorDstAcc)
	writeUint16(&buf, order.Fee.ProtocolFee)
	writeUint16(&buf, order.Fee.IntegratorFee)
	buf.WriteByte(order.Fee.SurplusPercentage)
	writeUint64(&buf, order.Fee.MinCancellationPremium)
	writeUint16(&buf, order.Fee.MaxCancellationMultiplier)

	writeUint32(&buf, order.DutchAuctionData.StartTime)
	writeUint32(&buf, order.DutchAuctionData.Duration)
	writeUint16(&buf, order.DutchAuctionData.InitialRateBump)
	writeUint32(&buf, uint32(len(order.DutchAuctionData.PointsAndTimeDeltas)))
	for _, point := range order.DutchAuctionData.PointsAndTimeDeltas {
		writeUint16(&buf, point.RateBump)
		writeUint16(&buf, point.TimeDelta)
	}

	writeUint32(&buf, order.CancellationAuctionDuration)
	buf.Write(order.SrcMint[:])
	buf.Write(order.DstMint[:])
	return buf.Bytes()
}

// DecodeOrder parses the canonical encoding back into an order config. The
// encoding must round-trip exactly; trailing bytes are an error.
func DecodeOrder(data []byte) (OrderConfig, error) {
	r := &orderReader{data: data}
	var order OrderConfig
	if version := r.readByte(); version != orderCodecVersion {
		if r.err == nil {
			r.err = fmt.Errorf("fusion: unsupported order codec version %d", version)
		}
	}
	order.ID = r.readUint32()
	order.SrcAmount = r.readUint64()
	order.MinDstAmount = r.readUint64()
	order.EstimatedDstAmount = r.readUint64()
	order.ExpirationTime = r.readUint32()
	order.NativeDstAsset = r.readBool()
	order.Receiver = r.readAccount()

	order.Fee.ProtocolDstAcc = r.readOptionalAccount()
	order.Fee.IntegratorDstAcc = r.readOptionalAccount()
	order.Fee.ProtocolFee = r.readUint16()
	order.Fee.IntegratorFee = r.readUint16()
	order.Fee.SurplusPercentage = r.readByte()
	order.Fee.MinCancellationPremium = r.readUint64()
	order.Fee.MaxCancellationMultiplier = r.readUint16()

	order.DutchAuctionData.StartTime = r.readUint32()
	order.DutchAuctionData.Duration = r.readUint32()
	order.DutchAuctionData.InitialRateBump = r.readUint16()
	pointCount := r.readUint32()
	if r.err == nil && pointCount > MaxAuctionPoints {
		r.err = ErrInvalidAuctionData
	}
	if r.err == nil && pointCount > 0 {
		order.DutchAuctionData.PointsAndTimeDeltas = make([]PointAndTimeDelta, 0, pointCount)
		for i := uint32(0); i < pointCount; i++ {
			point := PointAndTimeDelta{RateBump: r.readUint16(), TimeDelta: r.readUint16()}
			order.DutchAuctionData.PointsAndTimeDeltas = append(order.DutchAuctionData.PointsAndTimeDeltas, point)
		}
	}

	order.CancellationAuctionDuration = r.readUint32()
	order.SrcMint = r.readAccount()
	order.DstMint = r.readAccount()
	if r.err != nil {
		return OrderConfig{}, r.err
	}
	if r.pos != len(r.data) {
		return OrderConfig{}, fmt.Errorf("fusion: trailing bytes in order encoding")
	}
	return order, nil
}

// OrderHash is the content-addressed fingerprint binding an escrow to its
// exact economic terms.
func OrderHash(order OrderConfig) [32]byte {
	return [32]byte(ethcrypto.Keccak256Hash(EncodeOrder(order)))
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
		return
	}
	buf.WriteByte(0)
}

func writeOptionalAccount(buf *bytes.Buffer, acc *[32]byte) {
	if acc == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	buf.Write(acc[:])
}

type orderReader struct {
	data []byte
	pos  int
	err  error
}

func (r *orderReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.data) {
		r.err = fmt.Errorf("fusion: truncated order encoding")
		return nil
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out
}

func (r *orderReader) readByte() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *orderReader) readBool() bool {
	switch r.readByte() {
	case 0:
		return false
	case 1:
		return true
	default:
		if r.err == nil {
			r.err = fmt.Errorf("fusion: invalid bool in order encoding")
		}
		return false
	}
}

func (r *orderReader) readUint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *orderReader) readUint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *orderReader) readUint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *orderReader) readAccount() [32]byte {
	var out [32]byte
	b := r.take(32)
	if b != nil {
		copy(out[:], b)
	}
	return out
}

func (r *orderReader) readOptionalAccount() *[32]byte {
	if !r.readBool() {
		return nil
	}
	acc := r.readAccount()
	if r.err != nil {
		return nil
	}
	return &acc
}
