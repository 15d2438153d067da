// Package cluster wraps the Kubernetes control-plane operations the
// controller consumes: workload status, scaling, image rollback, config
// access, pod logs and resource metrics. The control plane is a collaborator
// here; recoverd never owns cluster state, it reads it and applies the
// narrow set of mutations the rollback workflow needs.
package cluster

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"
)

// Default bounds for outbound API calls. Conservative: recoverd runs next to
// incident tooling and must not contribute load to a struggling control plane.
const (
	defaultCallTimeout = 10 * time.Second
	defaultRateLimit   = 20 // calls per second
	defaultRateBurst   = 10
)

// Client is a rate-limited, timeout-bounded Kubernetes client scoped to one
// namespace.
type Client struct {
	clientset kubernetes.Interface
	metrics   metricsv.Interface
	namespace string
	timeout   time.Duration
	limiter   *rate.Limiter
}

// DeploymentStatus is the subset of workload state the controller inspects.
type DeploymentStatus struct {
	Name              string
	DesiredReplicas   int32
	ReadyReplicas     int32
	UpdatedReplicas   int32
	AvailableReplicas int32
	Image             string
	Annotations       map[string]string
}

// PodUsage is one pod's observed resource consumption.
type PodUsage struct {
	Pod         string
	CPUMilli    int64
	MemoryBytes int64
}

// NewClient builds a Client from kubeconfig, preferring in-cluster config
// when kubeconfigPath is empty and the process runs inside a pod.
func NewClient(kubeconfigPath, contextName, namespace string) (*Client, error) {
	var config *rest.Config
	var err error

	if kubeconfigPath == "" {
		config, err = rest.InClusterConfig()
		if err != nil {
			home, _ := os.UserHomeDir()
			if home != "" {
				kubeconfigPath = filepath.Join(home, ".kube", "config")
			}
		}
	}
	if config == nil {
		config, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
			&clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath},
			&clientcmd.ConfigOverrides{CurrentContext: contextName},
		).ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("cluster: build config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("cluster: create clientset: %w", err)
	}
	metricsClient, err := metricsv.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("cluster: create metrics clientset: %w", err)
	}

	return &Client{
		clientset: clientset,
		metrics:   metricsClient,
		namespace: namespace,
		timeout:   defaultCallTimeout,
		limiter:   rate.NewLimiter(rate.Limit(defaultRateLimit), defaultRateBurst),
	}, nil
}

// NewWithClientsets wraps pre-built clientsets. Used by tests to inject
// fakes; the metrics clientset may be nil when unused.
func NewWithClientsets(cs kubernetes.Interface, mcs metricsv.Interface, namespace string) *Client {
	return &Client{
		clientset: cs,
		metrics:   mcs,
		namespace: namespace,
		timeout:   defaultCallTimeout,
	}
}

// SetTimeout overrides the per-call timeout. Zero disables the bound and
// leaves only the caller's context.
func (c *Client) SetTimeout(d time.Duration) { c.timeout = d }

// Namespace returns the namespace this client is scoped to.
func (c *Client) Namespace() string { return c.namespace }

// call applies the rate limit and per-call timeout before an API request.
func (c *Client) call(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, fmt.Errorf("cluster: rate limiter: %w", err)
		}
	}
	if c.timeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		return ctx, cancel, nil
	}
	return ctx, func() {}, nil
}

// Reachable verifies the API server answers at all. Used by precondition
// checks before any mutation is attempted.
func (c *Client) Reachable(ctx context.Context) error {
	ctx, cancel, err := c.call(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	_ = ctx // ServerVersion carries its own transport deadline
	if _, err := c.clientset.Discovery().ServerVersion(); err != nil {
		return fmt.Errorf("cluster: api server unreachable: %w", err)
	}
	return nil
}

// GetDeploymentStatus reads the current state of the named deployment.
func (c *Client) GetDeploymentStatus(ctx context.Context, name string) (DeploymentStatus, error) {
	ctx, cancel, err := c.call(ctx)
	if err != nil {
		return DeploymentStatus{}, err
	}
	defer cancel()

	dep, err := c.clientset.AppsV1().Deployments(c.namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return DeploymentStatus{}, fmt.Errorf("cluster: get deployment %s: %w", name, err)
	}

	status := DeploymentStatus{
		Name:              dep.Name,
		ReadyReplicas:     dep.Status.ReadyReplicas,
		UpdatedReplicas:   dep.Status.UpdatedReplicas,
		AvailableReplicas: dep.Status.AvailableReplicas,
		Annotations:       dep.Annotations,
	}
	if dep.Spec.Replicas != nil {
		status.DesiredReplicas = *dep.Spec.Replicas
	}
	if len(dep.Spec.Template.Spec.Containers) > 0 {
		status.Image = dep.Spec.Template.Spec.Containers[0].Image
	}
	return status, nil
}

// ScaleDeployment sets the desired replica count.
func (c *Client) ScaleDeployment(ctx context.Context, name string, replicas int32) error {
	ctx, cancel, err := c.call(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	deployments := c.clientset.AppsV1().Deployments(c.namespace)
	dep, err := deployments.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("cluster: get deployment %s: %w", name, err)
	}
	dep.Spec.Replicas = &replicas
	if _, err := deployments.Update(ctx, dep, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("cluster: scale deployment %s to %d: %w", name, replicas, err)
	}
	return nil
}

// SetImage re-points the named container (or the first container when
// container is empty) at image. This is the primary rollback mutation.
func (c *Client) SetImage(ctx context.Context, name, container, image string) error {
	ctx, cancel, err := c.call(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	deployments := c.clientset.AppsV1().Deployments(c.namespace)
	dep, err := deployments.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("cluster: get deployment %s: %w", name, err)
	}
	if len(dep.Spec.Template.Spec.Containers) == 0 {
		return fmt.Errorf("cluster: deployment %s has no containers", name)
	}

	updated := false
	for i := range dep.Spec.Template.Spec.Containers {
		if container == "" && i == 0 || dep.Spec.Template.Spec.Containers[i].Name == container {
			dep.Spec.Template.Spec.Containers[i].Image = image
			updated = true
			break
		}
	}
	if !updated {
		return fmt.Errorf("cluster: deployment %s has no container %q", name, container)
	}

	if _, err := deployments.Update(ctx, dep, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("cluster: set image on %s: %w", name, err)
	}
	return nil
}

// RolloutRestart triggers a fresh rollout by stamping the pod template, the
// same mechanism kubectl uses. Used as the emergency fallback action.
func (c *Client) RolloutRestart(ctx context.Context, name string) error {
	ctx, cancel, err := c.call(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	patch := fmt.Sprintf(
		`{"spec":{"template":{"metadata":{"annotations":{"kubectl.kubernetes.io/restartedAt":%q}}}}}`,
		time.Now().UTC().Format(time.RFC3339),
	)
	_, err = c.clientset.AppsV1().Deployments(c.namespace).Patch(
		ctx, name, types.StrategicMergePatchType, []byte(patch), metav1.PatchOptions{},
	)
	if err != nil {
		return fmt.Errorf("cluster: rollout restart %s: %w", name, err)
	}
	return nil
}

// GetConfigMap returns the data of the named config map.
func (c *Client) GetConfigMap(ctx context.Context, name string) (map[string]string, error) {
	ctx, cancel, err := c.call(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	cm, err := c.clientset.CoreV1().ConfigMaps(c.namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("cluster: get configmap %s: %w", name, err)
	}
	return cm.Data, nil
}

// UpdateConfigMap replaces the data of the named config map.
func (c *Client) UpdateConfigMap(ctx context.Context, name string, data map[string]string) error {
	ctx, cancel, err := c.call(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	configmaps := c.clientset.CoreV1().ConfigMaps(c.namespace)
	cm, err := configmaps.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("cluster: get configmap %s: %w", name, err)
	}
	cm.Data = data
	if _, err := configmaps.Update(ctx, cm, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("cluster: update configmap %s: %w", name, err)
	}
	return nil
}

// PodLogs returns the tail of every pod matching selector, concatenated.
// Probes derive security counters from this output.
func (c *Client) PodLogs(ctx context.Context, selector string, tailLines int64) (string, error) {
	ctx, cancel, err := c.call(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	pods, err := c.clientset.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return "", fmt.Errorf("cluster: list pods %q: %w", selector, err)
	}

	var b strings.Builder
	for _, pod := range pods.Items {
		raw, err := c.clientset.CoreV1().Pods(c.namespace).
			GetLogs(pod.Name, &corev1.PodLogOptions{TailLines: &tailLines}).
			Do(ctx).Raw()
		if err != nil {
			// A single unreadable pod (terminating, evicted) must not hide
			// the logs of the others.
			continue
		}
		b.Write(raw)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// PodUsages returns resource consumption for pods matching selector via the
// metrics API. Returns an error when the metrics clientset is absent.
func (c *Client) PodUsages(ctx context.Context, selector string) ([]PodUsage, error) {
	if c.metrics == nil {
		return nil, fmt.Errorf("cluster: metrics API not configured")
	}
	ctx, cancel, err := c.call(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	list, err := c.metrics.MetricsV1beta1().PodMetricses(c.namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("cluster: pod metrics %q: %w", selector, err)
	}

	usages := make([]PodUsage, 0, len(list.Items))
	for _, pm := range list.Items {
		u := PodUsage{Pod: pm.Name}
		for _, container := range pm.Containers {
			if cpu, ok := container.Usage[corev1.ResourceCPU]; ok {
				u.CPUMilli += cpu.MilliValue()
			}
			if mem, ok := container.Usage[corev1.ResourceMemory]; ok {
				u.MemoryBytes += mem.Value()
			}
		}
		usages = append(usages, u)
	}
	return usages, nil
}
