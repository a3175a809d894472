package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"modernc.org/sqlite"
)

// Implemented by the modernc.org/sqlite driver connection.
type serializer interface {
	Serialize() ([]byte, error)
}

type restorer interface {
	NewRestore(srcURI string) (*sqlite.Backup, error)
}

var errNoSerialize = errors.New("sqlite driver does not support serialization or restore")

// serialize returns the image of the main database. It blocks while a transaction
// holds the single engine connection.
func serialize(ctx context.Context, db *sql.DB) ([]byte, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Close()

	var image []byte
	err = conn.Raw(func(driverConn any) error {
		s, ok := driverConn.(serializer)
		if !ok {
			return errNoSerialize
		}
		image, err = s.Serialize()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("serializing database: %w", err)
	}
	return image, nil
}

// restoreImage copies an image into the main database of db through the online
// backup API. The image is staged in a temporary file since the engine restores
// from a database file.
func restoreImage(ctx context.Context, db *sql.DB, image []byte) error {
	if len(image) == 0 {
		return errors.New("empty database image")
	}
	path, err := stageImage(image)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn any) error {
		r, ok := driverConn.(restorer)
		if !ok {
			return errNoSerialize
		}
		backup, err := r.NewRestore(path)
		if err != nil {
			return err
		}
		for {
			more, err := backup.Step(-1)
			if err != nil {
				return errors.Join(err, backup.Finish())
			}
			if !more {
				break
			}
		}
		return backup.Finish()
	})
	if err != nil {
		return fmt.Errorf("restoring database: %w", err)
	}
	return nil
}

func stageImage(image []byte) (string, error) {
	f, err := os.CreateTemp("", "matchlog-restore-*.db")
	if err != nil {
		return "", fmt.Errorf("staging image: %w", err)
	}
	if _, err := f.Write(image); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("staging image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("staging image: %w", err)
	}
	return f.Name(), nil
}

// VerifySnapshot reports whether data, a raw or compressed image, restores to a
// consistent database. The restored copy is discarded.
func VerifySnapshot(ctx context.Context, data []byte) error {
	s := &Store{logger: slog.New(slog.DiscardHandler)}
	db, err := s.restore(ctx, data)
	if err != nil {
		return err
	}
	return db.Close()
}
