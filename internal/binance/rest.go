package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// restClient holds the pieces every venue client shares: credentials, base
// URL and the HMAC-SHA256 request signing Binance requires on private
// endpoints.
type restClient struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

func newRESTClient(apiKey, secretKey, baseURL string) restClient {
	return restClient{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *restClient) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// doPublic issues an unsigned GET and returns the response body.
func (c *restClient) doPublic(path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s", string(body))
	}
	return body, nil
}

// doSigned issues a signed request with timestamp and signature appended.
func (c *restClient) doSigned(method, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", "5000")

	query := params.Encode()
	query += "&signature=" + c.sign(query)

	req, err := http.NewRequest(method, c.baseURL+path+"?"+query, nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s", string(body))
	}
	return body, nil
}

// parseRawKlines converts the venue's positional kline arrays.
func parseRawKlines(raw [][]interface{}) []Kline {
	klines := make([]Kline, len(raw))
	for i, r := range raw {
		klines[i] = Kline{
			OpenTime:  int64(toFloat(r[0])),
			Open:      toFloat(r[1]),
			High:      toFloat(r[2]),
			Low:       toFloat(r[3]),
			Close:     toFloat(r[4]),
			Volume:    toFloat(r[5]),
			CloseTime: int64(toFloat(r[6])),
		}
	}
	return klines
}

func toFloat(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}

// precisionFromStep derives decimal places from a filter step size such as
// "0.00100000".
func precisionFromStep(step string) int {
	step = strings.TrimRight(step, "0")
	idx := strings.Index(step, ".")
	if idx < 0 || idx == len(step)-1 {
		return 0
	}
	return len(step) - idx - 1
}

func formatQty(q float64, precision int) string {
	if precision >= 0 {
		return strconv.FormatFloat(q, 'f', precision, 64)
	}
	return strconv.FormatFloat(q, 'f', -1, 64)
}
