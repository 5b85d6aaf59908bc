// Package catalog lists the images of one directory in a stable, sorted order
// and tracks the browsing cursor over them.
//
// A Catalog is built wholesale by Scan and is otherwise only mutated by
// removing single entries. It is not safe for concurrent use; the session
// guards it together with the cursor.
package catalog
