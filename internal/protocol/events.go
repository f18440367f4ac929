// Package protocol defines the wire events of the table service. The
// transport carries named JSON records; unlisted payload fields are
// ignored on receipt.
package protocol

import (
	"encoding/json"

	"masa-service/internal/service/game"
)

// Client → server event names.
const (
	EvListTables     = "listTables"
	EvCreateTable    = "createTable"
	EvJoinTable      = "joinTable"
	EvLeaveTable     = "leaveTable"
	EvSpectateTable  = "spectateTable"
	EvLeaveSpectate  = "leaveSpectate"
	EvSubmitPass     = "submitPass"
	EvSelectContract = "selectContract"
	EvSubmitBid      = "submitBid"
	EvPlayCard       = "playCard"
	EvRematch        = "rematch"
	EvChatMessage    = "chatMessage"
	EvTyping         = "typing"
	EvRejoin         = "rejoin"
)

// Server → client event names.
const (
	EvTablesList             = "tablesList"
	EvTableJoined            = "tableJoined"
	EvSpectateJoined         = "spectateJoined"
	EvSpectatorUpdate        = "spectatorUpdate"
	EvUpdatePlayers          = "updatePlayers"
	EvUpdateGame             = "updateGame"
	EvStartGame              = "startGame"
	EvContractSelectionStart = "contractSelectionStart"
	EvContractSelected       = "contractSelected"
	EvBiddingStart           = "biddingStart"
	EvBidSubmitted           = "bidSubmitted"
	EvCardPlayed             = "cardPlayed"
	EvTrickEnd               = "trickEnd"
	EvTurnStart              = "turnStart"
	EvPassTimerStart         = "passTimerStart"
	EvSelectTimerStart       = "selectTimerStart"
	EvBidTimerStart          = "bidTimerStart"
	EvTimerWarning           = "timerWarning"
	EvAutoPlay               = "autoPlay"
	EvAutoPassSubmitted      = "autoPassSubmitted"
	EvRoundEnd               = "roundEnd"
	EvGameEnd                = "gameEnd"
	EvRematchStatus          = "rematchStatus"
	EvChat                   = "chat"
	EvTypingUpdate           = "typingUpdate"
	EvError                  = "error"
)

// Incoming is one framed client event.
type Incoming struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Outgoing is one framed server event. Seq increases per table so
// clients can detect missed frames and ask for a fresh updateGame.
type Outgoing struct {
	Type string      `json:"type"`
	Seq  int64       `json:"seq"`
	Data interface{} `json:"data"`
}

// Client → server payloads.

type ListTablesReq struct {
	GameType          game.GameType `json:"gameType,omitempty"`
	IncludeInProgress bool          `json:"includeInProgress"`
}

type TableOptions struct {
	EndingScore         int `json:"endingScore,omitempty"`
	WinThreshold        int `json:"winThreshold,omitempty"`
	InitialSelectorSeat int `json:"initialSelectorSeat,omitempty"`
}

type CreateTableReq struct {
	PlayerName string        `json:"playerName"`
	GameType   game.GameType `json:"gameType"`
	Options    TableOptions  `json:"options"`
}

type JoinTableReq struct {
	TableID    string `json:"tableId"`
	PlayerName string `json:"playerName"`
}

type SpectateTableReq struct {
	TableID    string `json:"tableId"`
	PlayerName string `json:"playerName,omitempty"`
}

type SubmitPassReq struct {
	Cards []game.Card `json:"cards"`
}

type SelectContractReq struct {
	ContractType game.ContractKind `json:"contractType"`
	ContractName game.PenaltyName  `json:"contractName,omitempty"`
	TrumpSuit    game.Suit         `json:"trumpSuit,omitempty"`
}

type SubmitBidReq struct {
	Bid game.Bid `json:"bid"`
}

type PlayCardReq struct {
	Card game.Card `json:"card"`
}

type RematchReq struct {
	Vote bool `json:"vote"`
}

type ChatMessageReq struct {
	Text string `json:"text"`
}

type TypingReq struct {
	IsTyping bool `json:"isTyping"`
}

// Server → client payloads.

type PlayerInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Seat      int    `json:"seat"`
	Connected bool   `json:"connected"`
}

type TableSummary struct {
	TableID        string        `json:"tableId"`
	GameType       game.GameType `json:"gameType"`
	PlayerCount    int           `json:"playerCount"`
	SpectatorCount int           `json:"spectatorCount"`
	InProgress     bool          `json:"inProgress"`
	TakeoverSeats  []int         `json:"takeoverSeats,omitempty"`
	Players        []PlayerInfo  `json:"players"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
