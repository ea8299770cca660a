package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// timeNowMillis 可在测试中替换。
var timeNowMillis = func() int64 { return time.Now().UnixMilli() }

// SignParams 追加 timestamp，按键排序编码后做 HMAC-SHA256，返回 query 与十六进制签名（MEXC/Binance 规则）。
func SignParams(params map[string]string, secret string) (string, string) {
	if _, ok := params["timestamp"]; !ok {
		params["timestamp"] = fmt.Sprintf("%d", timeNowMillis())
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	query := b.String()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(query))
	return query, hex.EncodeToString(mac.Sum(nil))
}

// SignGateV4 生成 Gate.io v4 签名：
// method\npath\nquery\nhex(sha512(body))\ntimestamp，HMAC-SHA512 后十六进制输出。
func SignGateV4(secret, method, path, query, body string, timestampSec int64) string {
	h := sha512.New()
	h.Write([]byte(body))
	payload := fmt.Sprintf("%s\n%s\n%s\n%s\n%d", method, path, query, hex.EncodeToString(h.Sum(nil)), timestampSec)
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
