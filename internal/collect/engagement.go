package collect

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/ppiankov/claimroot/internal/model"
	"go.uber.org/zap"
)

type apiUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type apiTweet struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	AuthorID string `json:"author_id"`
}

type pageMeta struct {
	ResultCount int    `json:"result_count"`
	NextToken   string `json:"next_token"`
}

type tweetPage struct {
	Data     []apiTweet `json:"data"`
	Includes struct {
		Users []apiUser `json:"users"`
	} `json:"includes"`
	Meta pageMeta `json:"meta"`
}

type userPage struct {
	Data []apiUser `json:"data"`
	Meta pageMeta  `json:"meta"`
}

// Stats counts what a collection run saw
type Stats struct {
	Replies      int  `json:"replies"`
	RepliesKept  int  `json:"replies_kept"`
	Retweeters   int  `json:"retweeters"`
	Quotes       int  `json:"quotes"`
	PagesFetched int  `json:"pages_fetched"`
	PageLimitHit bool `json:"page_limit_hit"`
}

// paginate walks pages until the API stops returning a token or pageLimit
// is reached, never past maxPages. A pageLimit of 0 means no limit. fetch
// returns the next token.
func (c *Client) paginate(path, tokenParam string, pageLimit int, build func() url.Values, fetch func(endpoint string) (string, error)) (pages int, limited bool, err error) {
	token := ""
	for pages < maxPages {
		query := build()
		if token != "" {
			query.Set(tokenParam, token)
		}

		next, err := fetch(c.endpoint(path, query))
		if err != nil {
			return pages, false, fmt.Errorf("%s page %d: %w", path, pages+1, err)
		}
		pages++

		if next == "" {
			return pages, false, nil
		}
		if pageLimit > 0 && pages >= pageLimit {
			return pages, true, nil
		}
		token = next
	}

	c.logger.Warn("Stopped at hard page cap", zap.String("endpoint", path), zap.Int("pages", pages))
	return pages, true, nil
}

// collectTweets walks a tweet listing and returns records in API order
func (c *Client) collectTweets(ctx context.Context, path, tokenParam string, build func() url.Values, kind model.EngagementKind) ([]model.EngagementRecord, int, bool, error) {
	var records []model.EngagementRecord

	pages, limited, err := c.paginate(path, tokenParam, c.pageLimit, build, func(endpoint string) (string, error) {
		var page tweetPage
		if err := c.getJSON(ctx, endpoint, &page); err != nil {
			return "", err
		}

		handles := make(map[string]string, len(page.Includes.Users))
		for _, u := range page.Includes.Users {
			handles[u.ID] = u.Username
		}

		for _, tw := range page.Data {
			records = append(records, model.EngagementRecord{
				ID:           tw.ID,
				AuthorID:     tw.AuthorID,
				AuthorHandle: handles[tw.AuthorID],
				Text:         tw.Text,
				Kind:         kind,
			})
		}

		c.logger.Debug("Fetched page",
			zap.String("endpoint", path),
			zap.Int("tweets", len(page.Data)),
			zap.Int("total", len(records)))
		return page.Meta.NextToken, nil
	})

	return records, pages, limited, err
}

func tweetQuery(extra url.Values) func() url.Values {
	return func() url.Values {
		q := url.Values{}
		q.Set("max_results", strconv.Itoa(maxResults))
		q.Set("expansions", "author_id")
		for k, v := range extra {
			q[k] = append([]string(nil), v...)
		}
		return q
	}
}

// Replies returns the replies in a conversation
func (c *Client) Replies(ctx context.Context, conversationID string) ([]model.EngagementRecord, error) {
	records, _, _, err := c.replies(ctx, conversationID)
	return records, err
}

func (c *Client) replies(ctx context.Context, conversationID string) ([]model.EngagementRecord, int, bool, error) {
	build := tweetQuery(url.Values{"query": {"conversation_id:" + conversationID}})
	return c.collectTweets(ctx, "/tweets/search/recent", "next_token", build, model.EngagementReply)
}

// Quotes returns the quote tweets of a tweet
func (c *Client) Quotes(ctx context.Context, tweetID string) ([]model.EngagementRecord, error) {
	records, _, _, err := c.quotes(ctx, tweetID)
	return records, err
}

func (c *Client) quotes(ctx context.Context, tweetID string) ([]model.EngagementRecord, int, bool, error) {
	path := "/tweets/" + url.PathEscape(tweetID) + "/quote_tweets"
	return c.collectTweets(ctx, path, "pagination_token", tweetQuery(nil), model.EngagementQuote)
}

// Retweeters returns the ids of accounts that retweeted a tweet, mapped to
// their handles. The walk ignores the page limit: a truncated retweeter
// list would silently drop eligible replies.
func (c *Client) Retweeters(ctx context.Context, tweetID string) (map[string]string, error) {
	users, _, _, err := c.retweeters(ctx, tweetID)
	return users, err
}

func (c *Client) retweeters(ctx context.Context, tweetID string) (map[string]string, int, bool, error) {
	users := make(map[string]string)
	path := "/tweets/" + url.PathEscape(tweetID) + "/retweeted_by"
	build := func() url.Values {
		q := url.Values{}
		q.Set("max_results", strconv.Itoa(maxResults))
		return q
	}

	pages, limited, err := c.paginate(path, "pagination_token", 0, build, func(endpoint string) (string, error) {
		var page userPage
		if err := c.getJSON(ctx, endpoint, &page); err != nil {
			return "", err
		}
		for _, u := range page.Data {
			users[u.ID] = u.Username
		}
		return page.Meta.NextToken, nil
	})

	return users, pages, limited, err
}

// CollectOptions selects which engagement a run gathers
type CollectOptions struct {
	RequireRetweet bool // Keep only replies whose author retweeted the conversation
	IncludeQuotes  bool // Append quote tweets after the replies
}

// Collect gathers the engagement records of a conversation. Replies come
// first in API order, optionally filtered to retweeters; quote tweets
// follow unfiltered.
func (c *Client) Collect(ctx context.Context, conversationID string, opts CollectOptions) ([]model.EngagementRecord, Stats, error) {
	var stats Stats

	replies, pages, limited, err := c.replies(ctx, conversationID)
	stats.PagesFetched += pages
	stats.PageLimitHit = stats.PageLimitHit || limited
	if err != nil {
		return nil, stats, fmt.Errorf("collect replies: %w", err)
	}
	stats.Replies = len(replies)
	c.logger.Info("Collected replies", zap.Int("count", len(replies)))

	if opts.RequireRetweet {
		retweeters, pages, limited, err := c.retweeters(ctx, conversationID)
		stats.PagesFetched += pages
		stats.PageLimitHit = stats.PageLimitHit || limited
		if err != nil {
			return nil, stats, fmt.Errorf("collect retweeters: %w", err)
		}
		stats.Retweeters = len(retweeters)
		replies = filterByAuthor(replies, retweeters)
		c.logger.Info("Filtered replies to retweeters",
			zap.Int("retweeters", len(retweeters)),
			zap.Int("kept", len(replies)))
	}
	stats.RepliesKept = len(replies)

	records := replies
	if opts.IncludeQuotes {
		quotes, pages, limited, err := c.quotes(ctx, conversationID)
		stats.PagesFetched += pages
		stats.PageLimitHit = stats.PageLimitHit || limited
		if err != nil {
			return nil, stats, fmt.Errorf("collect quotes: %w", err)
		}
		stats.Quotes = len(quotes)
		records = append(records, quotes...)
		c.logger.Info("Collected quotes", zap.Int("count", len(quotes)))
	}

	return records, stats, nil
}

// filterByAuthor keeps records whose author id is in allowed, preserving order
func filterByAuthor(records []model.EngagementRecord, allowed map[string]string) []model.EngagementRecord {
	kept := make([]model.EngagementRecord, 0, len(records))
	for _, r := range records {
		if _, ok := allowed[r.AuthorID]; ok {
			kept = append(kept, r)
		}
	}
	return kept
}
