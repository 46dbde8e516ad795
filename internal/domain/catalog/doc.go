// Package catalog contains the local product catalog as stored in the database.
//
// A Product carries a pending action marker (create, update or delete) that tells
// the sync which remote change is still owed. Records without a marker are never
// touched by the sync; the sync only ever clears markers, it never sets them.
package catalog
