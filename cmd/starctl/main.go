// Command starctl runs operator jobs against the star engine database:
// period reviews, award commits, retroactive bonuses and window resets.
// Every job prints a preview and writes nothing unless --confirm is given.
package main

func main() {
	Execute()
}
