package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// TargetReserver is implemented by every reserver in this package.
type TargetReserver interface {
	ReserveTargets(ctx context.Context, req models.ReserveRequest) (*models.ReserveResponse, error)
}

type blockWire struct {
	Index             int
	Size              int64
	Hash              []byte
	Signature         string
	SignerEmail       string
	VerificationToken []byte
}

type thumbnailWire struct {
	Type int
	Size int64
	Hash []byte
}

type reserveRequestWire struct {
	RevisionID  string
	FileID      string
	SignerEmail string
	AddressID   string
	Blocks      []blockWire
	Thumbnails  []thumbnailWire
}

type targetWire struct {
	Index int
	URL   string
	Token string
}

type reserveResponseWire struct {
	Blocks     []targetWire
	Thumbnails []targetWire
}

type refreshRequestWire struct {
	RefreshToken string
}

type refreshResponseWire struct {
	AccessToken  string
	RefreshToken string
}

func newReserveRequestWire(req models.ReserveRequest) reserveRequestWire {
	w := reserveRequestWire{
		RevisionID:  req.Identity.RevisionID,
		FileID:      req.Identity.FileID,
		SignerEmail: req.Identity.SignerEmail,
		AddressID:   req.Identity.AddressID,
		Blocks:      make([]blockWire, 0, len(req.Blocks)),
		Thumbnails:  make([]thumbnailWire, 0, len(req.Thumbnails)),
	}
	for _, b := range req.Blocks {
		w.Blocks = append(w.Blocks, blockWire(b))
	}
	for _, t := range req.Thumbnails {
		w.Thumbnails = append(w.Thumbnails, thumbnailWire(t))
	}
	return w
}

func (w reserveResponseWire) toModel() (*models.ReserveResponse, error) {
	resp := &models.ReserveResponse{
		Blocks:     make(map[int]models.UploadTarget, len(w.Blocks)),
		Thumbnails: make(map[int]models.UploadTarget, len(w.Thumbnails)),
	}
	for _, t := range w.Blocks {
		if t.URL == "" {
			return nil, fmt.Errorf("block %d: %w", t.Index, ErrIncompleteReservation)
		}
		resp.Blocks[t.Index] = models.UploadTarget{URL: t.URL, Token: t.Token}
	}
	for _, t := range w.Thumbnails {
		if t.URL == "" {
			return nil, fmt.Errorf("thumbnail %d: %w", t.Index, ErrIncompleteReservation)
		}
		resp.Thumbnails[t.Index] = models.UploadTarget{URL: t.URL, Token: t.Token}
	}
	return resp, nil
}

// toStruct converts a plain Go value into the protobuf Struct sent over gRPC.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
