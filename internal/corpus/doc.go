// Package corpus defines the article records shared by the harvest, fetch, and
// compile stages, along with the key type that identifies them in a store.
package corpus
