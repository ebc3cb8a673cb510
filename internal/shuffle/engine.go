package shuffle

import "time"

// Run drives one node through all five phases of a round and returns
// the recovered plaintexts on success. An error at any phase aborts
// the round: there is no partial output and no retry within the same
// round id.
func (n *Node) Run() ([][]byte, error) {
	start := time.Now()

	if err := n.runPhase1(); err != nil {
		n.critf("aborting: %v", err)
		return nil, err
	}
	if err := n.runPhase2(); err != nil {
		n.critf("aborting: %v", err)
		return nil, err
	}
	if err := n.runPhase3(); err != nil {
		n.critf("aborting: %v", err)
		return nil, err
	}
	if err := n.runPhase4(); err != nil {
		n.critf("aborting: %v", err)
		return nil, err
	}
	if err := n.runPhase5(); err != nil {
		n.critf("aborting: %v", err)
		return nil, err
	}

	elapsed := time.Since(start).Seconds()
	lens := make([]int, len(n.outputs))
	for i, out := range n.outputs {
		lens[i] = len(out)
	}
	n.log.Printf("SUCCESSROUND:SHUFFLE,%d,%d,%g,%v", n.cfg.RoundID, n.cfg.NNodes, elapsed, lens)
	return n.outputs, nil
}
