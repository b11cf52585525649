package frontend

import (
	"context"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/noterank/noterank/internal/store"
)

// treeCacheSize bounds how many recent snapshot ids' trees are memoized;
// the corpus is small enough that one entry usually suffices, but a
// process serving several recent snapshots during a rolling rebuild
// benefits from a few.
const treeCacheSize = 4

// TreeBuilder computes the directory/file tree projection over passage
// paths, memoized behind a single-flight guard keyed by store snapshot id
// so concurrent requests against the same snapshot share one computation.
type TreeBuilder struct {
	s     *store.Store
	cache *lru.Cache[string, *TreeNode]
	group singleflight.Group
}

func NewTreeBuilder(s *store.Store) *TreeBuilder {
	cache, _ := lru.New[string, *TreeNode](treeCacheSize)
	return &TreeBuilder{s: s, cache: cache}
}

// Build returns the directory/file tree for the given snapshot id,
// recomputing only on a cache miss.
func (b *TreeBuilder) Build(ctx context.Context, snapshotID string) (*TreeNode, error) {
	if node, ok := b.cache.Get(snapshotID); ok {
		return node, nil
	}

	v, err, _ := b.group.Do(snapshotID, func() (any, error) {
		node, err := b.buildTree(ctx)
		if err != nil {
			return nil, err
		}
		b.cache.Add(snapshotID, node)
		return node, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*TreeNode), nil
}

func (b *TreeBuilder) buildTree(ctx context.Context) (*TreeNode, error) {
	rows, err := b.s.DB().QueryContext(ctx, `SELECT id, file_path FROM chunks ORDER BY file_path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	root := &TreeNode{Name: "", Path: "", IsDir: true}
	dirs := map[string]*TreeNode{"": root}

	for rows.Next() {
		var id int64
		var filePath string
		if err := rows.Scan(&id, &filePath); err != nil {
			return nil, err
		}
		insertIntoTree(root, dirs, filePath, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortTree(root)
	return root, nil
}

func insertIntoTree(root *TreeNode, dirs map[string]*TreeNode, filePath string, chunkID int64) {
	parts := strings.Split(filePath, "/")
	dirPath := ""
	parent := root
	for i := 0; i < len(parts)-1; i++ {
		if dirPath == "" {
			dirPath = parts[i]
		} else {
			dirPath = dirPath + "/" + parts[i]
		}
		node, ok := dirs[dirPath]
		if !ok {
			node = &TreeNode{Name: parts[i], Path: dirPath, IsDir: true}
			dirs[dirPath] = node
			parent.Children = append(parent.Children, node)
		}
		node.ChunkIDs = append(node.ChunkIDs, chunkID)
		parent = node
	}

	fileName := parts[len(parts)-1]
	var fileNode *TreeNode
	for _, child := range parent.Children {
		if !child.IsDir && child.Path == filePath {
			fileNode = child
			break
		}
	}
	if fileNode == nil {
		fileNode = &TreeNode{Name: fileName, Path: filePath, IsDir: false}
		parent.Children = append(parent.Children, fileNode)
	}
	fileNode.ChunkIDs = append(fileNode.ChunkIDs, chunkID)

	// Every ancestor directory also accumulates this chunk id.
	root.ChunkIDs = append(root.ChunkIDs, chunkID)
}

func sortTree(node *TreeNode) {
	sort.Slice(node.Children, func(i, j int) bool {
		return node.Children[i].Name < node.Children[j].Name
	})
	for _, c := range node.Children {
		if c.IsDir {
			sortTree(c)
		}
	}
}
