package forest

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// GetForest renders the entire tenant forest as a JSON array of nested tree
// documents in one database round-trip, per spec §4.3. Root order is most
// recently updated first, then id ascending; each node's children are ordered
// by their pos under that parent (path_pos_key sorts exactly this way, see
// schema.go).
func GetForest(ctx context.Context, db *gorm.DB, tenantID string) (string, error) {
	query, ok := forestQueries[db.Name()]
	if !ok {
		query = forestQueries["postgres"]
	}

	var out string
	if err := db.WithContext(ctx).Raw(query, tenantID, tenantID).Scan(&out).Error; err != nil {
		return "", fmt.Errorf("materialize forest: %w", err)
	}
	if out == "" {
		return "[]", nil
	}
	return out, nil
}

// forestQueries holds one single-pass CTE per supported dialect. Each builds
// the same token stream described in spec §4.3: a per-tree pre-order walk
// ordered by path_pos_key (not path_pos directly — see SPEC_FULL.md §3 for why
// a sortable string column stands in for array comparison across dialects),
// with LEAD/LAG/ROW_NUMBER supplying next_depth/prev_depth/row_num, string-
// aggregated into `{"id":...,"label":...,"children":[...]}` tokens and wrapped
// in the outer forest array. Ported from original_source's FOREST_JSON_QUERY,
// fixed to order the final concatenation by recency rank (root_rank) instead
// of root_id — see DESIGN.md for why that's a fix, not a faithful port.
var forestQueries = map[string]string{
	"postgres": `
WITH roots AS (
    SELECT id AS root_id, ROW_NUMBER() OVER (ORDER BY updated_at DESC, id ASC) AS root_rank
    FROM tree_nodes
    WHERE parent_id IS NULL AND tenant_id = ?
),
nodes AS (
    SELECT id, label_json, root_id, path_pos_key, depth
    FROM tree_nodes
    WHERE tenant_id = ?
),
ordered AS (
    SELECT
        id, label_json, root_id, depth,
        LEAD(depth, 1, 0) OVER (PARTITION BY root_id ORDER BY path_pos_key) AS next_depth,
        LAG(depth) OVER (PARTITION BY root_id ORDER BY path_pos_key) AS prev_depth,
        ROW_NUMBER() OVER (PARTITION BY root_id ORDER BY path_pos_key) AS row_num
    FROM nodes
),
per_root AS (
    SELECT
        o.root_id,
        STRING_AGG(
            CASE
                WHEN row_num = 1 THEN ''
                WHEN depth > prev_depth THEN ''
                ELSE ','
            END ||
            '{"id":"' || id::text || '"' ||
            ',"label":' || label_json ||
            ',"children":[' ||
            CASE
                WHEN next_depth > depth THEN ''
                WHEN next_depth = 0 THEN REPEAT(']}', depth::int)
                WHEN next_depth < depth THEN REPEAT(']}', (depth - next_depth)::int) || ']}'
                ELSE ']}'
            END,
            '' ORDER BY path_pos_key
        ) AS json_text
    FROM ordered o
    GROUP BY o.root_id
)
SELECT COALESCE(
    '[' || STRING_AGG(pr.json_text, ',' ORDER BY r.root_rank) || ']',
    '[]'
)
FROM roots r
LEFT JOIN per_root pr ON pr.root_id = r.root_id
`,

	// MySQL 8+: CONCAT instead of ||, GROUP_CONCAT with an inline ORDER BY
	// instead of STRING_AGG. NOTE: GROUP_CONCAT truncates at
	// group_concat_max_len (default 1024 on many installs); a tenant with a
	// very large forest needs that session variable raised before calling
	// this, which is a deployment knob this package cannot set on a
	// connection it does not own.
	"mysql": `
WITH roots AS (
    SELECT id AS root_id, ROW_NUMBER() OVER (ORDER BY updated_at DESC, id ASC) AS root_rank
    FROM tree_nodes
    WHERE parent_id IS NULL AND tenant_id = ?
),
nodes AS (
    SELECT id, label_json, root_id, path_pos_key, depth
    FROM tree_nodes
    WHERE tenant_id = ?
),
ordered AS (
    SELECT
        id, label_json, root_id, depth,
        LEAD(depth, 1, 0) OVER (PARTITION BY root_id ORDER BY path_pos_key) AS next_depth,
        LAG(depth) OVER (PARTITION BY root_id ORDER BY path_pos_key) AS prev_depth,
        ROW_NUMBER() OVER (PARTITION BY root_id ORDER BY path_pos_key) AS row_num
    FROM nodes
),
per_root AS (
    SELECT
        o.root_id,
        GROUP_CONCAT(
            CONCAT(
                CASE
                    WHEN row_num = 1 THEN ''
                    WHEN depth > prev_depth THEN ''
                    ELSE ','
                END,
                '{"id":"', CAST(id AS CHAR), '"',
                ',"label":', label_json,
                ',"children":[',
                CASE
                    WHEN next_depth > depth THEN ''
                    WHEN next_depth = 0 THEN REPEAT(']}', depth)
                    WHEN next_depth < depth THEN CONCAT(REPEAT(']}', depth - next_depth), ']}')
                    ELSE ']}'
                END
            )
            ORDER BY path_pos_key SEPARATOR ''
        ) AS json_text
    FROM ordered o
    GROUP BY o.root_id
)
SELECT COALESCE(
    CONCAT('[', GROUP_CONCAT(pr.json_text ORDER BY r.root_rank SEPARATOR ','), ']'),
    '[]'
)
FROM roots r
LEFT JOIN per_root pr ON pr.root_id = r.root_id
`,

	// SQLite has no REPEAT(): hex(zeroblob(n)) yields n repetitions of the
	// byte "00" as hex text, so replace(hex(zeroblob(n)), '00', s) yields n
	// copies of s — a plain built-in-function substitution, no custom
	// function registration required. GROUP_CONCAT has no inline ORDER BY
	// (pre-3.44), so `ordered` is aggregated from an already-sorted subquery;
	// SQLite accumulates GROUP_CONCAT in the row order it receives, which a
	// pre-sorted derived table guarantees.
	"sqlite": `
WITH roots AS (
    SELECT id AS root_id, ROW_NUMBER() OVER (ORDER BY updated_at DESC, id ASC) AS root_rank
    FROM tree_nodes
    WHERE parent_id IS NULL AND tenant_id = ?
),
nodes AS (
    SELECT id, label_json, root_id, path_pos_key, depth
    FROM tree_nodes
    WHERE tenant_id = ?
),
ordered AS (
    SELECT
        id, label_json, root_id, depth,
        LEAD(depth, 1, 0) OVER (PARTITION BY root_id ORDER BY path_pos_key) AS next_depth,
        LAG(depth) OVER (PARTITION BY root_id ORDER BY path_pos_key) AS prev_depth,
        ROW_NUMBER() OVER (PARTITION BY root_id ORDER BY path_pos_key) AS row_num
    FROM nodes
),
tokens AS (
    SELECT
        root_id,
        path_pos_key,
        (CASE
            WHEN row_num = 1 THEN ''
            WHEN depth > prev_depth THEN ''
            ELSE ','
        END ||
        '{"id":"' || CAST(id AS TEXT) || '"' ||
        ',"label":' || label_json ||
        ',"children":[' ||
        (CASE
            WHEN next_depth > depth THEN ''
            WHEN next_depth = 0 THEN replace(hex(zeroblob(depth)), '00', ']}')
            WHEN next_depth < depth THEN replace(hex(zeroblob(depth - next_depth)), '00', ']}') || ']}'
            ELSE ']}'
        END)) AS token
    FROM ordered
    ORDER BY root_id, path_pos_key
),
per_root AS (
    SELECT root_id, GROUP_CONCAT(token, '') AS json_text
    FROM tokens
    GROUP BY root_id
)
SELECT COALESCE(
    '[' || (
        SELECT GROUP_CONCAT(x.json_text, ',')
        FROM (
            SELECT pr.json_text
            FROM roots r
            LEFT JOIN per_root pr ON pr.root_id = r.root_id
            ORDER BY r.root_rank
        ) AS x
    ) || ']',
    '[]'
)
`,
}
