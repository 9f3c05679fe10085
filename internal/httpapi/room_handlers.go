package httpapi

import (
	"context"
	"net/http"

	"example.com/sketch-mvp/internal/game"
	"example.com/sketch-mvp/internal/room"
	"github.com/gin-gonic/gin"
)

// SnapshotMessages is how many chat lines GET /api/rooms/:id returns.
const SnapshotMessages = 50

// Rooms is the coordinator as seen by the HTTP layer.
type Rooms interface {
	Room(ctx context.Context, roomID string, messages int) (room.Room, error)
	CreateRoom(ctx context.Context, hostID, hostName string, s game.Settings) (room.Room, error)
	JoinRoom(ctx context.Context, roomID, playerID, name string) (room.Room, error)
	LeaveRoom(ctx context.Context, roomID, playerID string) error
	UpdateSettings(ctx context.Context, roomID, actorID string, patch game.SettingsPatch) (room.Room, error)
	ListRooms(ctx context.Context) ([]room.Room, error)
	DeleteRoom(ctx context.Context, roomID, actorID string) error
	StartGame(ctx context.Context, roomID, actorID string) error
	ChooseWord(ctx context.Context, roomID, actorID, word string) error
	SubmitGuess(ctx context.Context, roomID, playerID, text string) (game.GuessResult, error)
	PostMessage(ctx context.Context, roomID, playerID, text string) (game.GuessResult, error)
	ResetGame(ctx context.Context, roomID, actorID string) error
}

// Realtime upgrades a joined player's request to a WebSocket.
type Realtime interface {
	Serve(w http.ResponseWriter, r *http.Request, roomID, playerID, name string)
}

type RoomHandler struct {
	Rooms    Rooms
	Realtime Realtime
}

type RoomSummary struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	HostID      string     `json:"hostId"`
	Phase       room.Phase `json:"phase"`
	Players     int        `json:"players"`
	MaxPlayers  int        `json:"maxPlayers"`
	RoundNumber int        `json:"roundNumber"`
	TotalRounds int        `json:"totalRounds"`
}

type WordRequest struct {
	Word string `json:"word"`
}

type TextRequest struct {
	Text string `json:"text"`
}

// roomCall resolves the caller and the room id or writes the error.
func roomCall(c *gin.Context) (roomID, playerID, name string, ok bool) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "unauthorized", "missing auth context")
		return "", "", "", false
	}
	roomID = c.Param("id")
	if !game.ValidRoomID(roomID) {
		writeError(c, http.StatusNotFound, game.CodeNotFound, "room not found")
		return "", "", "", false
	}
	return roomID, claims.CurrentUserID(), claims.CurrentDisplayName(), true
}

func (h *RoomHandler) List(c *gin.Context) {
	rooms, err := h.Rooms.ListRooms(c.Request.Context())
	if err != nil {
		writeGameError(c, err)
		return
	}
	out := make([]RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomSummary{
			ID:          r.ID,
			Name:        r.Name,
			HostID:      r.HostID,
			Phase:       r.Phase,
			Players:     len(r.Players),
			MaxPlayers:  r.MaxPlayers,
			RoundNumber: r.RoundNumber,
			TotalRounds: r.TotalRounds,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *RoomHandler) Create(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "unauthorized", "missing auth context")
		return
	}
	var s game.Settings
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&s); err != nil {
			writeError(c, http.StatusBadRequest, "bad_request", "invalid json")
			return
		}
	}
	r, err := h.Rooms.CreateRoom(c.Request.Context(), claims.CurrentUserID(), claims.CurrentDisplayName(), s)
	if err != nil {
		writeGameError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r.VisibleTo(claims.CurrentUserID()))
}

func (h *RoomHandler) Get(c *gin.Context) {
	roomID, playerID, _, ok := roomCall(c)
	if !ok {
		return
	}
	r, err := h.Rooms.Room(c.Request.Context(), roomID, SnapshotMessages)
	if err != nil {
		writeGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, r.VisibleTo(playerID))
}

func (h *RoomHandler) Join(c *gin.Context) {
	roomID, playerID, name, ok := roomCall(c)
	if !ok {
		return
	}
	r, err := h.Rooms.JoinRoom(c.Request.Context(), roomID, playerID, name)
	if err != nil {
		writeGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, r.VisibleTo(playerID))
}

func (h *RoomHandler) Leave(c *gin.Context) {
	h.do(c, func(ctx context.Context, roomID, playerID string) error {
		return h.Rooms.LeaveRoom(ctx, roomID, playerID)
	})
}

func (h *RoomHandler) Start(c *gin.Context) {
	h.do(c, func(ctx context.Context, roomID, playerID string) error {
		return h.Rooms.StartGame(ctx, roomID, playerID)
	})
}

func (h *RoomHandler) Reset(c *gin.Context) {
	h.do(c, func(ctx context.Context, roomID, playerID string) error {
		return h.Rooms.ResetGame(ctx, roomID, playerID)
	})
}

func (h *RoomHandler) Delete(c *gin.Context) {
	h.do(c, func(ctx context.Context, roomID, playerID string) error {
		return h.Rooms.DeleteRoom(ctx, roomID, playerID)
	})
}

func (h *RoomHandler) ChooseWord(c *gin.Context) {
	var req WordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	h.do(c, func(ctx context.Context, roomID, playerID string) error {
		return h.Rooms.ChooseWord(ctx, roomID, playerID, req.Word)
	})
}

// do runs an operation without a response body.
func (h *RoomHandler) do(c *gin.Context, op func(ctx context.Context, roomID, playerID string) error) {
	roomID, playerID, _, ok := roomCall(c)
	if !ok {
		return
	}
	if err := op(c.Request.Context(), roomID, playerID); err != nil {
		writeGameError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RoomHandler) Guess(c *gin.Context) {
	h.text(c, h.Rooms.SubmitGuess)
}

func (h *RoomHandler) PostMessage(c *gin.Context) {
	h.text(c, h.Rooms.PostMessage)
}

func (h *RoomHandler) text(c *gin.Context, op func(ctx context.Context, roomID, playerID, text string) (game.GuessResult, error)) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	roomID, playerID, _, ok := roomCall(c)
	if !ok {
		return
	}
	res, err := op(c.Request.Context(), roomID, playerID, req.Text)
	if err != nil {
		writeGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *RoomHandler) UpdateSettings(c *gin.Context) {
	var patch game.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	roomID, playerID, _, ok := roomCall(c)
	if !ok {
		return
	}
	r, err := h.Rooms.UpdateSettings(c.Request.Context(), roomID, playerID, patch)
	if err != nil {
		writeGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, r.VisibleTo(playerID))
}

// Connect joins the caller to the room and hands the request to the hub.
func (h *RoomHandler) Connect(c *gin.Context) {
	roomID, playerID, name, ok := roomCall(c)
	if !ok {
		return
	}
	if _, err := h.Rooms.JoinRoom(c.Request.Context(), roomID, playerID, name); err != nil {
		writeGameError(c, err)
		return
	}
	h.Realtime.Serve(c.Writer, c.Request, roomID, playerID, name)
}
