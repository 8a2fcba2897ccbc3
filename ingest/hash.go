package ingest

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/xiaoyuanzhu-com/hound/models"
)

// MessageHash identifies a message for deduplication
func MessageHash(msg models.MessageContext) string {
	sum := md5.Sum([]byte(string(msg.Source) + ":" + msg.Sender + ":" + msg.Content))
	return hex.EncodeToString(sum[:])
}
