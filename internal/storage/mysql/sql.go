package mysql

// Reviews are append-only: a second insert of (platform, source_id) fails
// with ER_DUP_ENTRY instead of updating the row.
const insertReviewSQL = `
INSERT INTO reviews
  (platform, source_id, rating, title, body, reviewed_at, app_version, developer_responded)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

// Stable order so hydration replays the table the same way every time;
// aggregation itself does not depend on it.
const listReviewsSQL = `
SELECT
  source_id,
  rating,
  title,
  body,
  reviewed_at,
  app_version,
  developer_responded
FROM reviews
WHERE platform = ?
ORDER BY reviewed_at ASC, source_id ASC
`

const countReviewsSQL = `
SELECT platform, COUNT(*)
FROM reviews
GROUP BY platform
`
