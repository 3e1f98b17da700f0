package database

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ReservedUsernames are always rejected regardless of the downloaded list
var ReservedUsernames = []string{"admin", "administrator", "root", "system", "ecoplay", "support"}

// SeedBadWords inserts the reserved usernames and, when listURL is set,
// the newline separated word list served there. Already seeded tables are left alone.
func (db *DB) SeedBadWords(ctx context.Context, listURL string) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bad_words").Scan(&count); err != nil {
		return fmt.Errorf("failed to check bad words count: %w", err)
	}

	if count > 0 {
		db.logger.Debug("bad words filter already populated", zap.Int("count", count))
		return nil
	}

	words := append([]string(nil), ReservedUsernames...)
	if listURL != "" {
		downloaded, err := fetchWordList(ctx, listURL)
		if err != nil {
			return err
		}
		words = append(words, downloaded...)
	}

	return db.WithTx(ctx, func(tx *Tx) error {
		added := 0
		query := db.Dialect.InsertIgnoreWordQuery()
		for _, word := range words {
			word = strings.TrimSpace(strings.ToLower(word))
			if word == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, query, word); err != nil {
				return fmt.Errorf("failed to insert bad word: %w", err)
			}
			added++
		}
		db.logger.Info("bad words filter populated", zap.Int("count", added))
		return nil
	})
}

func fetchWordList(ctx context.Context, listURL string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build bad words request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download bad words list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status code from bad words URL: %d", resp.StatusCode)
	}

	var words []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		words = append(words, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading bad words: %w", err)
	}
	return words, nil
}

// IsBadWord checks if a word is in the bad words list
func (db *DB) IsBadWord(ctx context.Context, word string) (bool, error) {
	cleanWord := strings.TrimSpace(strings.ToLower(word))

	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bad_words WHERE word = ?", cleanWord).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check bad word: %w", err)
	}

	if count > 0 {
		db.logger.Info("bad word detected", zap.String("word", word))
	}

	return count > 0, nil
}
