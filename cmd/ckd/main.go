// Command ckd preprocesses the CKD dataset, trains and evaluates the
// classifier and serves screening predictions over HTTP.
package main

func main() {
	Execute()
}
