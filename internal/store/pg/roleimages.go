package pg

import (
	"context"
	"database/sql"

	"bureau.org/internal/domain"
	"bureau.org/internal/roleimage"
)

func (s *Store) UpsertRoleImage(ctx context.Context, img roleimage.Image) error {
	q, args, err := psql.Insert("role_images").
		Columns("role", "url", "content_type", "size_bytes", "updated_by", "updated_at").
		Values(string(img.Role), img.URL, img.ContentType, img.Size, img.UpdatedBy, img.UpdatedAt).
		Suffix(`on conflict (role) do update set
			url = excluded.url,
			content_type = excluded.content_type,
			size_bytes = excluded.size_bytes,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, q, args...)
	return mapErr(err)
}

func (s *Store) ListRoleImages(ctx context.Context) ([]roleimage.Image, error) {
	b := psql.Select("role", "url", "content_type", "size_bytes", "updated_by", "updated_at").
		From("role_images").
		OrderBy("role")
	var out []roleimage.Image
	err := s.query(ctx, b, func(rows *sql.Rows) error {
		var (
			img  roleimage.Image
			role string
		)
		if err := rows.Scan(&role, &img.URL, &img.ContentType, &img.Size, &img.UpdatedBy, &img.UpdatedAt); err != nil {
			return err
		}
		img.Role = domain.Role(role)
		out = append(out, img)
		return nil
	})
	return out, err
}
