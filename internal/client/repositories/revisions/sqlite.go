package revisions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateRevision inserts rev. A revision without a state is stored as pending.
func (r *SQLiteRepository) CreateRevision(ctx context.Context, rev *models.Revision) error {

	query := `insert into revisions (id, file_id, signer_email, address_id, state) values (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, rev.ID, rev.FileID, rev.SignerEmail, rev.AddressID, string(initialState(rev.State)))
	if err != nil {
		return fmt.Errorf("failed to insert revision: %w", err)
	}

	return nil
}

func (r *SQLiteRepository) GetRevision(ctx context.Context, id string) (*models.Revision, error) {

	query := `select id, file_id, signer_email, address_id, state from revisions where id=?`
	row := r.db.QueryRowContext(ctx, query, id)

	rev := &models.Revision{}
	var state string
	err := row.Scan(&rev.ID, &rev.FileID, &rev.SignerEmail, &rev.AddressID, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select revision: %w", err)
	}
	rev.State = models.UploadState(state)

	return rev, nil
}

func (r *SQLiteRepository) ListPendingRevisions(ctx context.Context) ([]*models.Revision, error) {

	query := `select id, file_id, signer_email, address_id, state from revisions where state=? order by id`
	rows, err := r.db.QueryContext(ctx, query, string(models.UploadStatePending))
	if err != nil {
		return nil, fmt.Errorf("error selecting revisions: %w", err)
	}
	defer rows.Close()

	var result []*models.Revision

	for rows.Next() {
		rev := &models.Revision{}
		var state string
		if err := rows.Scan(&rev.ID, &rev.FileID, &rev.SignerEmail, &rev.AddressID, &state); err != nil {
			return nil, err
		}
		rev.State = models.UploadState(state)
		result = append(result, rev)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *SQLiteRepository) SetRevisionState(ctx context.Context, id string, state models.UploadState) error {

	query := `update revisions set state=? where id=?`
	result, err := r.db.ExecContext(ctx, query, string(state), id)
	if err != nil {
		return fmt.Errorf("failed to update revision: %w", err)
	}

	return expectOneRow(result)
}

func (r *SQLiteRepository) CreateBlock(ctx context.Context, b *models.Block) error {

	url, token := targetArgs(b.Target)
	query := `insert into blocks (revision_id, idx, size, hash, local_path, signature, signer_email,
			target_url, target_token, uploaded, verification_token)
			values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, b.RevisionID, b.Index, b.Size, b.Hash, b.LocalPath, b.Signature,
		b.SignerEmail, url, token, b.IsUploaded, b.VerificationToken)
	if err != nil {
		return fmt.Errorf("failed to insert block: %w", err)
	}

	return nil
}

const blockColumns = `revision_id, idx, size, hash, local_path, signature, signer_email,
	target_url, target_token, uploaded, verification_token`

func scanBlock(s interface{ Scan(dest ...any) error }) (*models.Block, error) {
	b := &models.Block{}
	var url, token sql.NullString
	err := s.Scan(&b.RevisionID, &b.Index, &b.Size, &b.Hash, &b.LocalPath, &b.Signature, &b.SignerEmail,
		&url, &token, &b.IsUploaded, &b.VerificationToken)
	if err != nil {
		return nil, err
	}
	b.Target = scanTarget(url, token)
	return b, nil
}

func (r *SQLiteRepository) GetBlocks(ctx context.Context, revisionID string) ([]*models.Block, error) {

	query := `select ` + blockColumns + ` from blocks where revision_id=? order by idx`
	rows, err := r.db.QueryContext(ctx, query, revisionID)
	if err != nil {
		return nil, fmt.Errorf("error selecting blocks: %w", err)
	}
	defer rows.Close()

	var result []*models.Block

	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *SQLiteRepository) GetBlock(ctx context.Context, revisionID string, index int) (*models.Block, error) {

	query := `select ` + blockColumns + ` from blocks where revision_id=? and idx=?`
	b, err := scanBlock(r.db.QueryRowContext(ctx, query, revisionID, index))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select block: %w", err)
	}

	return b, nil
}

func (r *SQLiteRepository) SetBlockTarget(ctx context.Context, revisionID string, index int, target *models.UploadTarget) error {

	url, token := targetArgs(target)
	query := `update blocks set target_url=?, target_token=? where revision_id=? and idx=? and uploaded=0`
	result, err := r.db.ExecContext(ctx, query, url, token, revisionID, index)
	if err != nil {
		return fmt.Errorf("failed to update block target: %w", err)
	}

	return expectOneRow(result)
}

func (r *SQLiteRepository) MarkBlockUploaded(ctx context.Context, revisionID string, index int, target models.UploadTarget) error {

	query := `update blocks set uploaded=1, target_url=?, target_token=? where revision_id=? and idx=?`
	result, err := r.db.ExecContext(ctx, query, target.URL, target.Token, revisionID, index)
	if err != nil {
		return fmt.Errorf("failed to mark block uploaded: %w", err)
	}

	return expectOneRow(result)
}

func (r *SQLiteRepository) CreateThumbnail(ctx context.Context, t *models.Thumbnail) error {

	url, token := targetArgs(t.Target)
	query := `insert into thumbnails (revision_id, type, size, hash, local_path, target_url, target_token, uploaded)
			values (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, t.RevisionID, t.Type, t.Size, t.Hash, t.LocalPath, url, token, t.IsUploaded)
	if err != nil {
		return fmt.Errorf("failed to insert thumbnail: %w", err)
	}

	return nil
}

const thumbnailColumns = `revision_id, type, size, hash, local_path, target_url, target_token, uploaded`

func scanThumbnail(s interface{ Scan(dest ...any) error }) (*models.Thumbnail, error) {
	t := &models.Thumbnail{}
	var url, token sql.NullString
	err := s.Scan(&t.RevisionID, &t.Type, &t.Size, &t.Hash, &t.LocalPath, &url, &token, &t.IsUploaded)
	if err != nil {
		return nil, err
	}
	t.Target = scanTarget(url, token)
	return t, nil
}

func (r *SQLiteRepository) GetThumbnails(ctx context.Context, revisionID string) ([]*models.Thumbnail, error) {

	query := `select ` + thumbnailColumns + ` from thumbnails where revision_id=? order by type`
	rows, err := r.db.QueryContext(ctx, query, revisionID)
	if err != nil {
		return nil, fmt.Errorf("error selecting thumbnails: %w", err)
	}
	defer rows.Close()

	var result []*models.Thumbnail

	for rows.Next() {
		t, err := scanThumbnail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *SQLiteRepository) GetThumbnail(ctx context.Context, revisionID string, typ int) (*models.Thumbnail, error) {

	query := `select ` + thumbnailColumns + ` from thumbnails where revision_id=? and type=?`
	t, err := scanThumbnail(r.db.QueryRowContext(ctx, query, revisionID, typ))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select thumbnail: %w", err)
	}

	return t, nil
}

func (r *SQLiteRepository) SetThumbnailTarget(ctx context.Context, revisionID string, typ int, target *models.UploadTarget) error {

	url, token := targetArgs(target)
	query := `update thumbnails set target_url=?, target_token=? where revision_id=? and type=? and uploaded=0`
	result, err := r.db.ExecContext(ctx, query, url, token, revisionID, typ)
	if err != nil {
		return fmt.Errorf("failed to update thumbnail target: %w", err)
	}

	return expectOneRow(result)
}

func (r *SQLiteRepository) MarkThumbnailUploaded(ctx context.Context, revisionID string, typ int, target models.UploadTarget) error {

	query := `update thumbnails set uploaded=1, target_url=?, target_token=? where revision_id=? and type=?`
	result, err := r.db.ExecContext(ctx, query, target.URL, target.Token, revisionID, typ)
	if err != nil {
		return fmt.Errorf("failed to mark thumbnail uploaded: %w", err)
	}

	return expectOneRow(result)
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected != 1 {
		return fmt.Errorf("%w: %d", ErrWrongRowsCount, rowsAffected)
	}

	return nil
}

func targetArgs(t *models.UploadTarget) (any, any) {
	if t == nil {
		return nil, nil
	}
	return t.URL, t.Token
}

func scanTarget(url, token sql.NullString) *models.UploadTarget {
	if !url.Valid {
		return nil
	}
	return &models.UploadTarget{URL: url.String, Token: token.String}
}

func initialState(s models.UploadState) models.UploadState {
	if s == "" {
		return models.UploadStatePending
	}
	return s
}
