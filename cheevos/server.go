package cheevos

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

const (
	RequestURL = "https://retroachievements.org/dorequest.php"
	MediaHost  = "https://media.retroachievements.org"
)

// achievement set flags
const (
	flagCore       = 3
	flagUnofficial = 5
)

func post(values url.Values) Request {
	return Request{Method: "POST", URL: RequestURL, Body: values.Encode()}
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (e *Engine) loginRequest() Request {
	return post(url.Values{
		"r": {"login2"},
		"u": {e.user},
		"t": {e.token},
	})
}

func (e *Engine) gameIDRequest(hash string) Request {
	return post(url.Values{
		"r": {"gameid"},
		"m": {hash},
	})
}

func (e *Engine) patchRequest(gameID uint32) Request {
	return post(url.Values{
		"r": {"patch"},
		"u": {e.user},
		"t": {e.token},
		"g": {strconv.FormatUint(uint64(gameID), 10)},
	})
}

func (e *Engine) startSessionRequest(g *Game) Request {
	return post(url.Values{
		"r": {"startsession"},
		"u": {e.user},
		"t": {e.token},
		"g": {strconv.FormatUint(uint64(g.ID), 10)},
		"h": {boolDigit(e.hardcore)},
		"m": {g.Hash},
	})
}

func (e *Engine) awardRequest(id uint32) Request {
	hardcore := boolDigit(e.hardcore)
	sum := md5.Sum([]byte(fmt.Sprintf("%d%s%s", id, e.user, hardcore)))
	hash := ""
	if e.game != nil {
		hash = e.game.Hash
	}
	return post(url.Values{
		"r": {"awardachievement"},
		"u": {e.user},
		"t": {e.token},
		"a": {strconv.FormatUint(uint64(id), 10)},
		"h": {hardcore},
		"m": {hash},
		"v": {hex.EncodeToString(sum[:])},
	})
}

type serverResponse struct {
	Success bool   `json:"Success"`
	Error   string `json:"Error"`
}

type loginResponse struct {
	serverResponse
	User  string `json:"User"`
	Token string `json:"Token"`
	Score int    `json:"Score"`
}

type gameIDResponse struct {
	serverResponse
	GameID uint32 `json:"GameID"`
}

type patchResponse struct {
	serverResponse
	PatchData struct {
		ID           uint32 `json:"ID"`
		Title        string `json:"Title"`
		ImageIcon    string `json:"ImageIcon"`
		Achievements []struct {
			ID          uint32 `json:"ID"`
			MemAddr     string `json:"MemAddr"`
			Title       string `json:"Title"`
			Description string `json:"Description"`
			Points      int    `json:"Points"`
			BadgeName   string `json:"BadgeName"`
			Flags       int    `json:"Flags"`
		} `json:"Achievements"`
	} `json:"PatchData"`
}

type unlock struct {
	ID uint32 `json:"ID"`
}

type startSessionResponse struct {
	serverResponse
	Unlocks         []unlock `json:"Unlocks"`
	HardcoreUnlocks []unlock `json:"HardcoreUnlocks"`
}

type awardResponse struct {
	serverResponse
	AchievementID uint32 `json:"AchievementID"`
	Score         int    `json:"Score"`
}

type successReporter interface {
	result() serverResponse
}

func (r serverResponse) result() serverResponse { return r }

// decode checks the transport status and the server's Success flag.
func decode(rsp Response, v successReporter) error {
	if rsp.Retryable() {
		return fmt.Errorf("cheevos: no response from server")
	}
	if rsp.Status != 200 {
		return fmt.Errorf("cheevos: http status %d", rsp.Status)
	}
	if err := json.Unmarshal(rsp.Body, v); err != nil {
		return fmt.Errorf("cheevos: decode response: %w", err)
	}
	if r := v.result(); !r.Success {
		if r.Error == "" {
			r.Error = "request failed"
		}
		return fmt.Errorf("cheevos: server: %s", r.Error)
	}
	return nil
}
