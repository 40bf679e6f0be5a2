// Package fixcodec implements the FIX 5.0SP2 / FIXT.1.1 wire codec: SOH
// framing, BodyLength/CheckSum computation, field-order enforcement, HMAC
// password signing, and tolerant decoding of repeating groups.
package fixcodec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SOH is the FIX field delimiter, byte 0x01.
const SOH = '\x01'

// Errors surfaced by the codec. Framing errors never tear down a session;
// they are returned to the caller (the transport/demux layer) which drops
// the offending frame and continues.
var (
	ErrMalformedFrame = errors.New("fixcodec: malformed frame")
	ErrUnknownMsgType = errors.New("fixcodec: unknown msg type")
)

// Field is a single tag=value pair in wire order.
type Field struct {
	Tag   Tag
	Value string
}

// Message is a decoded or to-be-encoded FIX message as an ordered field
// list. Lookups are linear; FIX bodies are small enough that this is
// simpler and just as fast as indexing for the volumes this Core handles.
type Message struct {
	Fields []Field
}

// Get returns the first field value for tag, if present.
func (m *Message) Get(tag Tag) (string, bool) {
	for _, f := range m.Fields {
		if f.Tag == tag {
			return f.Value, true
		}
	}
	return "", false
}

// MsgType returns tag 35's value.
func (m *Message) MsgType() string {
	v, _ := m.Get(TagMsgType)
	return v
}

// Add appends a field, preserving caller-specified order.
func (m *Message) Add(tag Tag, value string) {
	m.Fields = append(m.Fields, Field{Tag: tag, Value: value})
}

// Encode renders body (already in the field order the caller is
// responsible for — see GeneralBodyOrder / NewOrderSingleOrder) into a
// complete FIX frame: BeginString, BodyLength, the body fields, and a
// trailing CheckSum.
//
// BodyLength is the byte count from the first body field (tag 35) through
// the SOH preceding tag 10, exclusive of tag 10 itself. CheckSum is the
// sum of all preceding bytes modulo 256, rendered as three zero-padded
// decimal digits.
func Encode(body []Field) []byte {
	var bodyBuf strings.Builder
	for _, f := range body {
		bodyBuf.WriteString(strconv.Itoa(int(f.Tag)))
		bodyBuf.WriteByte('=')
		bodyBuf.WriteString(f.Value)
		bodyBuf.WriteByte(SOH)
	}
	bodyBytes := []byte(bodyBuf.String())

	var head strings.Builder
	head.WriteString(strconv.Itoa(int(TagBeginString)))
	head.WriteByte('=')
	head.WriteString(BeginString)
	head.WriteByte(SOH)
	head.WriteString(strconv.Itoa(int(TagBodyLength)))
	head.WriteByte('=')
	head.WriteString(strconv.Itoa(len(bodyBytes)))
	head.WriteByte(SOH)

	frame := append([]byte(head.String()), bodyBytes...)

	sum := checksum(frame)
	frame = append(frame, []byte(fmt.Sprintf("%d=%03d%c", TagCheckSum, sum, SOH))...)
	return frame
}

func checksum(b []byte) int {
	total := 0
	for _, c := range b {
		total += int(c)
	}
	return total % 256
}

// Decode splits a single complete frame on SOH into an ordered Message,
// validating BodyLength and CheckSum. Unknown tags are preserved, not
// rejected — only the two framing invariants are checked.
func Decode(frame []byte) (*Message, error) {
	raw := strings.TrimSuffix(string(frame), string(SOH))
	parts := strings.Split(raw, string(SOH))
	if len(parts) < 3 {
		return nil, fmt.Errorf("%w: too few fields", ErrMalformedFrame)
	}

	msg := &Message{}
	var bodyLength int
	var checkSumField string
	bodyLengthSeen := false

	for i, part := range parts {
		tagStr, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("%w: field %d missing '='", ErrMalformedFrame, i)
		}
		tagNum, err := strconv.Atoi(tagStr)
		if err != nil {
			return nil, fmt.Errorf("%w: non-numeric tag %q", ErrMalformedFrame, tagStr)
		}
		tag := Tag(tagNum)

		switch tag {
		case TagBeginString:
			// consumed implicitly; not part of the Message body
			continue
		case TagBodyLength:
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("%w: bad body length %q", ErrMalformedFrame, value)
			}
			bodyLength = n
			bodyLengthSeen = true
			continue
		case TagCheckSum:
			checkSumField = value
			continue
		}
		msg.Add(tag, value)
	}

	if !bodyLengthSeen || checkSumField == "" {
		return nil, fmt.Errorf("%w: missing BodyLength or CheckSum", ErrMalformedFrame)
	}

	if err := verifyBodyLength(raw, bodyLength); err != nil {
		return nil, err
	}
	if err := verifyCheckSum(raw, checkSumField); err != nil {
		return nil, err
	}

	return msg, nil
}

func verifyBodyLength(raw string, declared int) error {
	// The body runs from the first byte after "9=<n>\x01" through the SOH
	// preceding "10=". Recompute it the same way Encode did, independent
	// of field order, by locating the two markers textually.
	idx9 := strings.Index(raw, fmt.Sprintf("%d=", TagBodyLength))
	if idx9 < 0 {
		return fmt.Errorf("%w: no BodyLength field", ErrMalformedFrame)
	}
	sohAfter9 := strings.IndexByte(raw[idx9:], SOH)
	if sohAfter9 < 0 {
		return fmt.Errorf("%w: unterminated BodyLength field", ErrMalformedFrame)
	}
	bodyStart := idx9 + sohAfter9 + 1

	idx10 := strings.LastIndex(raw, fmt.Sprintf("%c%d=", SOH, TagCheckSum))
	if idx10 < 0 {
		return fmt.Errorf("%w: no CheckSum field", ErrMalformedFrame)
	}
	bodyEnd := idx10 + 1 // the SOH itself belongs to the body

	if bodyEnd < bodyStart {
		return fmt.Errorf("%w: CheckSum precedes BodyLength", ErrMalformedFrame)
	}
	actual := bodyEnd - bodyStart
	if actual != declared {
		return fmt.Errorf("%w: BodyLength mismatch, declared=%d actual=%d", ErrMalformedFrame, declared, actual)
	}
	return nil
}

func verifyCheckSum(raw, declared string) error {
	idx10 := strings.LastIndex(raw, fmt.Sprintf("%c%d=", SOH, TagCheckSum))
	if idx10 < 0 {
		return fmt.Errorf("%w: no CheckSum field", ErrMalformedFrame)
	}
	sum := checksum([]byte(raw[:idx10+1]))
	if fmt.Sprintf("%03d", sum) != declared {
		return fmt.Errorf("%w: CheckSum mismatch, declared=%s actual=%03d", ErrMalformedFrame, declared, sum)
	}
	return nil
}
