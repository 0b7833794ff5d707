// Package ipc handles inter-process communication between the playback service and its clients.
package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/austinkregel/local-media/playbackclient/internal/types"
)

// CommandType represents the type of command
type CommandType string

const (
	CmdPair           CommandType = "pair"
	CmdAddCallback    CommandType = "addCallback"
	CmdRemoveCallback CommandType = "removeCallback"

	// Queue management commands
	CmdLoad           CommandType = "load"
	CmdLoadLocations  CommandType = "loadLocations"
	CmdAppend         CommandType = "append"
	CmdMoveItem       CommandType = "moveItem"
	CmdRemove         CommandType = "remove"
	CmdRemoveLocation CommandType = "removeLocation"
	CmdGetMedias      CommandType = "getMedias"
	CmdGetLocations   CommandType = "getMediaLocations"
	CmdGetLocation    CommandType = "getCurrentMediaLocation"
	CmdGetCurrent     CommandType = "getCurrentMedia"

	// Transport commands
	CmdStop             CommandType = "stop"
	CmdPlay             CommandType = "play"
	CmdPause            CommandType = "pause"
	CmdNext             CommandType = "next"
	CmdPrevious         CommandType = "previous"
	CmdPlayIndex        CommandType = "playIndex"
	CmdShowWithoutParse CommandType = "showWithoutParse"
	CmdSetTime          CommandType = "setTime"
	CmdHandleVout       CommandType = "handleVout"

	// Metadata queries
	CmdGetAlbum      CommandType = "getAlbum"
	CmdGetArtist     CommandType = "getArtist"
	CmdGetArtistPrev CommandType = "getArtistPrev"
	CmdGetArtistNext CommandType = "getArtistNext"
	CmdGetTitle      CommandType = "getTitle"
	CmdGetTitlePrev  CommandType = "getTitlePrev"
	CmdGetTitleNext  CommandType = "getTitleNext"
	CmdGetCover      CommandType = "getCover"
	CmdGetCoverPrev  CommandType = "getCoverPrev"
	CmdGetCoverNext  CommandType = "getCoverNext"

	// State queries
	CmdIsPlaying   CommandType = "isPlaying"
	CmdHasMedia    CommandType = "hasMedia"
	CmdHasNext     CommandType = "hasNext"
	CmdHasPrevious CommandType = "hasPrevious"
	CmdGetLength   CommandType = "getLength"
	CmdGetTime     CommandType = "getTime"
	CmdGetRate     CommandType = "getRate"

	// Modes
	CmdShuffle       CommandType = "shuffle"
	CmdIsShuffling   CommandType = "isShuffling"
	CmdSetRepeatType CommandType = "setRepeatType"
	CmdGetRepeatType CommandType = "getRepeatType"
	CmdDetectHeadset CommandType = "detectHeadset"
)

// Push message types sent to clients that registered a callback
const (
	PushUpdate         = "update"
	PushUpdateProgress = "updateProgress"
	PushMediaAdded     = "mediaPlayedAdded"
	PushMediaRemoved   = "mediaPlayedRemoved"
)

// PushMessage represents a server-initiated message (no request needed)
type PushMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Request represents a client request
type Request struct {
	ID    uint64          `json:"id"`
	Cmd   CommandType     `json:"cmd"`
	Token string          `json:"token,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Response represents a server response
type Response struct {
	ID      uint64          `json:"id"`
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// PairRequest is the data for a pair command
type PairRequest struct {
	ClientName string `json:"clientName"`
}

// PairResponse is the response to a pair command
type PairResponse struct {
	Token            string `json:"token"`
	ClientID         string `json:"clientId"`
	RequiresApproval bool   `json:"requiresApproval"`
}

// LoadRequest is the data for a load command
type LoadRequest struct {
	Items      []types.MediaItem `json:"items"`
	Position   int               `json:"position"`
	ForceAudio bool              `json:"forceAudio,omitempty"`
}

// LoadLocationsRequest is the data for a loadLocations command
type LoadLocationsRequest struct {
	Locations []string `json:"locations"`
	Position  int      `json:"position"`
}

// AppendRequest is the data for an append command
type AppendRequest struct {
	Items []types.MediaItem `json:"items"`
}

// MoveItemRequest is the data for a moveItem command
type MoveItemRequest struct {
	FromIndex int `json:"fromIndex"`
	ToIndex   int `json:"toIndex"`
}

// IndexRequest is the data for remove, playIndex and showWithoutParse
type IndexRequest struct {
	Index int `json:"index"`
}

// LocationRequest is the data for a removeLocation command
type LocationRequest struct {
	Location string `json:"location"`
}

// SetTimeRequest is the data for a setTime command
type SetTimeRequest struct {
	Time int64 `json:"time"` // milliseconds
}

// SetRepeatRequest is the data for a setRepeatType command
type SetRepeatRequest struct {
	Mode string `json:"mode"` // "none", "once", "all"
}

// DetectHeadsetRequest is the data for a detectHeadset command
type DetectHeadsetRequest struct {
	Enabled bool `json:"enabled"`
}

// CoverResponse carries encoded cover art
type CoverResponse struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// MediaPlayedAddedPush is the data of a mediaPlayedAdded push
type MediaPlayedAddedPush struct {
	Item  types.MediaItem `json:"item"`
	Index int             `json:"index"`
}

// MediaPlayedRemovedPush is the data of a mediaPlayedRemoved push
type MediaPlayedRemovedPush struct {
	Index int `json:"index"`
}

// serverMessage is the union of every frame a server can send
type serverMessage struct {
	ID      uint64          `json:"id"`
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// EncodeRequest encodes a request to JSON
func EncodeRequest(req *Request) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeRequest decodes a request from JSON
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return &req, nil
}

// EncodeResponse encodes a response to JSON
func EncodeResponse(resp *Response) ([]byte, error) {
	return json.Marshal(resp)
}

// DecodeResponse decodes a response from JSON
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// DecodeServerMessage decodes a frame sent by the server.
// Exactly one of the returned response and push message is non-nil on success.
func DecodeServerMessage(data []byte) (*Response, *PushMessage, error) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, nil, fmt.Errorf("failed to decode server message: %w", err)
	}
	if msg.Type != "" {
		return nil, &PushMessage{Type: msg.Type, Data: msg.Data}, nil
	}
	return &Response{
		ID:      msg.ID,
		Success: msg.Success,
		Error:   msg.Error,
		Data:    msg.Data,
	}, nil, nil
}

// NewRequest creates a request with data marshaled to JSON
func NewRequest(id uint64, cmd CommandType, token string, data interface{}) (*Request, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s data: %w", cmd, err)
		}
	}
	return &Request{
		ID:    id,
		Cmd:   cmd,
		Token: token,
		Data:  rawData,
	}, nil
}

// NewSuccessResponse creates a successful response
func NewSuccessResponse(data interface{}) (*Response, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	return &Response{
		Success: true,
		Data:    rawData,
	}, nil
}

// NewErrorResponse creates an error response
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}

// NewPushMessage creates a push message for a registered callback
func NewPushMessage(msgType string, data interface{}) ([]byte, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	msg := PushMessage{
		Type: msgType,
		Data: rawData,
	}
	return json.Marshal(msg)
}
