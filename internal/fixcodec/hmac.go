package fixcodec

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"time"
)

// SendingTime renders t in the FIX SendingTime (tag 52) format, UTC.
func SendingTime(t time.Time) string {
	return t.UTC().Format(SendingTimeLayout)
}

// SignPassword computes the tag 554 Password value for an authenticated
// message: base64(HMAC_SHA256(secret, sendingTime || msgType || seqNum ||
// senderCompID || targetCompID || username)), with no separators between
// the concatenated fields.
func SignPassword(secret, sendingTime, msgType, seqNum, senderCompID, targetCompID, username string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sendingTime))
	mac.Write([]byte(msgType))
	mac.Write([]byte(seqNum))
	mac.Write([]byte(senderCompID))
	mac.Write([]byte(targetCompID))
	mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
